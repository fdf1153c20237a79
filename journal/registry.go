package journal

import (
	"context"
	"fmt"
	"sort"
)

type Factory func(context.Context, map[string]interface{}) (Journal, error)

var registry = make(map[string]Factory)

func Register(key string, f Factory) {
	registry[key] = f
}

func Create(ctx context.Context, key string, conf map[string]interface{}) (Journal, error) {
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("journal type %s not found in registry (have %v)", key, Types())
	}
	return f(ctx, conf)
}

// Types lists the registered journal types.
func Types() []string {
	var result []string
	for k := range registry {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}
