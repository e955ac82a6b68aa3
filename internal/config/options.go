package config

import "fmt"

// FromMap builds a Config from a decoded options document (the plain structure
// handed over by the CLI layer). Unknown top-level keys are rejected eagerly;
// recognized sections tolerate only their known fields.
func FromMap(opts map[string]any) (*Config, error) {
	cfg := Default()

	for key, raw := range opts {
		switch key {
		case "resolution":
			if err := applyResolution(cfg, raw); err != nil {
				return nil, err
			}
		case "loading":
			if err := applyLoading(cfg, raw); err != nil {
				return nil, err
			}
		case "compilation":
			if err := applyCompilation(cfg, raw); err != nil {
				return nil, err
			}
		case "metrics":
			b, err := asBool(key, raw)
			if err != nil {
				return nil, err
			}
			cfg.Features.Metrics = b
		case "circuitBreakers":
			b, err := asBool(key, raw)
			if err != nil {
				return nil, err
			}
			cfg.Features.CircuitBreakers = b
		case "logger":
			b, err := asBool(key, raw)
			if err != nil {
				return nil, err
			}
			cfg.Features.Logger = b
		case "managementPort":
			n, err := asInt(key, raw)
			if err != nil {
				return nil, err
			}
			cfg.Management.Port = n
		default:
			return nil, fmt.Errorf("unknown option %q", key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyResolution(cfg *Config, raw any) error {
	section, err := asSection("resolution", raw)
	if err != nil {
		return err
	}
	for key, v := range section {
		switch key {
		case "baseUrl":
			s, err := asString("resolution.baseUrl", v)
			if err != nil {
				return err
			}
			cfg.Resolution.BaseURL = s
		case "extensions":
			exts, err := asStringSlice("resolution.extensions", v)
			if err != nil {
				return err
			}
			cfg.Resolution.Extensions = exts
		default:
			return fmt.Errorf("unknown option %q", "resolution."+key)
		}
	}
	return nil
}

func applyLoading(cfg *Config, raw any) error {
	section, err := asSection("loading", raw)
	if err != nil {
		return err
	}
	for key, v := range section {
		switch key {
		case "cache":
			b, err := asBool("loading.cache", v)
			if err != nil {
				return err
			}
			cfg.Loading.Cache = b
		case "circularDependencyStrategy":
			s, err := asString("loading.circularDependencyStrategy", v)
			if err != nil {
				return err
			}
			cfg.Loading.CircularDependencyStrategy = s
		default:
			return fmt.Errorf("unknown option %q", "loading."+key)
		}
	}
	return nil
}

func applyCompilation(cfg *Config, raw any) error {
	section, err := asSection("compilation", raw)
	if err != nil {
		return err
	}
	for key, v := range section {
		switch key {
		case "target":
			s, err := asString("compilation.target", v)
			if err != nil {
				return err
			}
			cfg.Compilation.Target = s
		case "strict":
			b, err := asBool("compilation.strict", v)
			if err != nil {
				return err
			}
			cfg.Compilation.Strict = b
		case "verifyOutput":
			b, err := asBool("compilation.verifyOutput", v)
			if err != nil {
				return err
			}
			cfg.Compilation.VerifyOutput = b
		default:
			return fmt.Errorf("unknown option %q", "compilation."+key)
		}
	}
	return nil
}

func asSection(name string, raw any) (map[string]any, error) {
	section, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("option %q must be an object, got %T", name, raw)
	}
	return section, nil
}

func asBool(name string, raw any) (bool, error) {
	b, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("option %q must be a boolean, got %T", name, raw)
	}
	return b, nil
}

func asString(name string, raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("option %q must be a string, got %T", name, raw)
	}
	return s, nil
}

func asInt(name string, raw any) (int, error) {
	switch n := raw.(type) {
	case int:
		return n, nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("option %q must be an integer, got %v", name, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("option %q must be an integer, got %T", name, raw)
	}
}

func asStringSlice(name string, raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("option %q must be a list of strings, got %T element", name, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("option %q must be a list of strings, got %T", name, raw)
	}
}
