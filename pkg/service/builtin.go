package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Builtin tasks simulate work for the given default duration.
var builtinTasks = map[string]time.Duration{
	"task_a": 1 * time.Second,
	"task_b": 2 * time.Second,
	"task_c": 1500 * time.Millisecond,
}

// RegisterBuiltinTasks registers task_a, task_b and task_c.
//
// Each builtin honours two params: "duration" (a Go duration string such as
// "250ms", or a number of seconds) overrides the simulated work time, and
// "fail" (bool) makes the task fail once the work is done. Other params,
// including retry_count and timeout, are ignored.
func RegisterBuiltinTasks(r *Registry) error {
	for name, d := range builtinTasks {
		if err := r.RegisterFunc(name, simulatedWork(d)); err != nil {
			return err
		}
	}
	return nil
}

func simulatedWork(defaultDuration time.Duration) TaskFunc {
	return func(ctx context.Context, params map[string]any) error {
		d, err := durationParam(params, "duration", defaultDuration)
		if err != nil {
			return err
		}
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
		if fail, _ := params["fail"].(bool); fail {
			return errors.New("failure requested by params")
		}
		return nil
	}
}

func durationParam(params map[string]any, key string, fallback time.Duration) (time.Duration, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback, nil
	}
	switch d := v.(type) {
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid %s param", key)
		}
		return parsed, nil
	case float64:
		return time.Duration(d * float64(time.Second)), nil
	case int:
		return time.Duration(d) * time.Second, nil
	default:
		return 0, fmt.Errorf("invalid %s param: unsupported type %T", key, v)
	}
}
