package je

import (
	"fmt"
	"strconv"
	"time"
)

// Version is the current configuration and tool version.
const Version = "0.4.0"

// Instance is a remote repository endpoint with its credentials.
type Instance struct {
	Address  string
	User     string
	Password string
}

// Bundle is a named, ordered set of local paths synchronized as one package.
// Each path must contain the jcr_root marker segment.
type Bundle struct {
	Name  string
	Paths []string
}

// Package identifies a content package on the remote package manager.
type Package struct {
	Name    string
	Version string
	Group   string
}

const (
	DefaultPackageName  = "je-pkg"
	DefaultPackageGroup = "je"
)

// NewPackage produces the identity used for one invocation.
// Its version is the Unix time of `now` in seconds.
func NewPackage(now time.Time) Package {
	return Package{
		Name:    DefaultPackageName,
		Version: strconv.FormatInt(now.Unix(), 10),
		Group:   DefaultPackageGroup,
	}
}

// StoragePath is the package's path below /etc/packages on the remote.
func (p Package) StoragePath() string {
	return fmt.Sprintf("%s/%s-%s.zip", p.Group, p.Name, p.Version)
}

func (p Package) String() string {
	return p.StoragePath()
}

// RuleKind tells how an IgnoreRule matches a line.
type RuleKind int

const (
	// Contains matches lines containing the rule value as a whole property name.
	Contains RuleKind = iota

	// Regex matches lines the rule value, a regular expression, matches.
	Regex
)

func (k RuleKind) String() string {
	switch k {
	case Contains:
		return "contains"
	case Regex:
		return "regex"
	}
	return "RuleKind(" + strconv.Itoa(int(k)) + ")"
}

// ParseRuleKind is the inverse of RuleKind.String.
func ParseRuleKind(s string) (RuleKind, error) {
	switch s {
	case "contains":
		return Contains, nil
	case "regex":
		return Regex, nil
	}
	return 0, fmt.Errorf("unknown ignore rule type %q", s)
}

// IgnoreRule selects lines the content filter removes.
type IgnoreRule struct {
	Kind  RuleKind
	Value string
}

// DefaultBuildWait is how long to wait after asking the remote to build a package.
const DefaultBuildWait = 100 * time.Millisecond

// Options carries the per-invocation switches threaded through the pipeline.
type Options struct {
	// RetainArtifacts leaves the remote package and the local work directory in place
	// for inspection.
	RetainArtifacts bool

	// BuildWait is the fixed delay between requesting a build and downloading the result.
	// The remote has no completion signal for builds.
	// Zero means DefaultBuildWait.
	BuildWait time.Duration
}

// Wait is o.BuildWait with the default applied.
func (o Options) Wait() time.Duration {
	if o.BuildWait <= 0 {
		return DefaultBuildWait
	}
	return o.BuildWait
}

// Step names one stage of a synchronization.
type Step string

const (
	StepPrepare  Step = "prepare package"
	StepCopy     Step = "copy"
	StepZip      Step = "zip"
	StepUpload   Step = "upload"
	StepBuild    Step = "build"
	StepClean    Step = "clean"
	StepDownload Step = "download"
	StepDelete   Step = "delete"
	StepUnzip    Step = "unzip"
	StepInstall  Step = "install"
	StepFilter   Step = "filter"
	StepMove     Step = "move back"
)
