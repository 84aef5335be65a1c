package service

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Load reads, parses and validates a YAML service description.
func Load(fs afero.Fs, path string) (*Description, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service description %q: %w", path, err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("service description %q: %w", path, err)
	}
	return d, nil
}

// Parse decodes and validates a YAML service description. Scalar values are
// accepted where the model wants lists (input_token: Marker) and intervals
// use Go duration strings (interval: 20s).
func Parse(data []byte) (*Description, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var d Description
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &d,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build description decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode service description: %w", err)
	}

	d.normalize()
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service description: %w", err)
	}
	return &d, nil
}

// normalize fills defaults before validation: protocol, names carried from
// map keys, and waiter interval/attempt defaults.
func (d *Description) normalize() {
	if d.Protocol == "" {
		d.Protocol = ProtocolAWSJSON
	}

	for name, op := range d.Operations {
		op.Name = name
		if op.HTTPMethod == "" {
			op.HTTPMethod = "POST"
		}
		d.Operations[name] = op
	}

	for name, w := range d.Waiters {
		w.Name = name
		if w.Interval == 0 {
			w.Interval = DefaultWaiterInterval
		}
		if w.MaxAttempts == 0 {
			w.MaxAttempts = DefaultWaiterMaxAttempts
		}
		d.Waiters[name] = w
	}
}
