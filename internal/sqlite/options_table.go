// This file implements the option store. Options are read once at open;
// every change is written through. A value equal to its default is stored as
// the absence of a row.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/fabrylab/clickpoints/pkg/types"
)

func (df *DataFile) loadOptions() error {
	rows, err := df.db.Query("SELECT key, value FROM option")
	if err != nil {
		return fmt.Errorf("reading options: %w", err)
	}
	defer rows.Close()

	df.options = make(map[string]types.OptionValue)
	for rows.Next() {
		var key string
		var raw sql.NullString
		if err := rows.Scan(&key, &raw); err != nil {
			return err
		}
		spec, ok := types.LookupOption(df.optionSpecs, key)
		if !ok {
			df.logger.Debug("ignoring undeclared option", "key", key)
			continue
		}
		v, err := types.ParseOptionValue(spec.Kind, raw.String)
		if err == nil {
			v, err = spec.Check(v)
		}
		if err != nil {
			df.logger.Warn("using default for unreadable option", "key", key, "value", raw.String, "error", err)
			continue
		}
		df.options[key] = v
	}
	return rows.Err()
}

func (df *DataFile) optionSpec(key string) (*types.OptionSpec, error) {
	spec, ok := types.LookupOption(df.optionSpecs, key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownOption, key)
	}
	return spec, nil
}

// GetOption returns the effective value of an option.
func (df *DataFile) GetOption(key string) (types.OptionValue, error) {
	spec, err := df.optionSpec(key)
	if err != nil {
		return types.OptionValue{}, err
	}
	df.mu.Lock()
	defer df.mu.Unlock()
	if v, ok := df.options[key]; ok {
		return v, nil
	}
	return spec.Default, nil
}

// SetOption validates and stores an option value.
func (df *DataFile) SetOption(key string, v types.OptionValue) error {
	spec, err := df.optionSpec(key)
	if err != nil {
		return err
	}
	if v, err = spec.Check(v); err != nil {
		return err
	}
	if err := df.writable(); err != nil {
		return err
	}
	if v.Equal(spec.Default) {
		return df.ResetOption(key)
	}
	_, err = df.db.Exec("INSERT INTO option (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, v.Format())
	if err != nil {
		return fmt.Errorf("persisting option %s: %w", key, err)
	}
	df.mu.Lock()
	df.options[key] = v
	df.mu.Unlock()
	return nil
}

// SetOptionString parses s in the canonical encoding of the option's kind
// and stores it.
func (df *DataFile) SetOptionString(key, s string) error {
	spec, err := df.optionSpec(key)
	if err != nil {
		return err
	}
	v, err := types.ParseOptionValue(spec.Kind, s)
	if err != nil {
		return err
	}
	return df.SetOption(key, v)
}

// ResetOption restores the default of an option.
func (df *DataFile) ResetOption(key string) error {
	if _, err := df.optionSpec(key); err != nil {
		return err
	}
	if err := df.writable(); err != nil {
		return err
	}
	if _, err := df.db.Exec("DELETE FROM option WHERE key = ?", key); err != nil {
		return fmt.Errorf("resetting option %s: %w", key, err)
	}
	df.mu.Lock()
	delete(df.options, key)
	df.mu.Unlock()
	return nil
}

// Options returns every declared option with its effective value in
// declaration order.
func (df *DataFile) Options() []types.Option {
	df.mu.Lock()
	defer df.mu.Unlock()
	out := make([]types.Option, len(df.optionSpecs))
	for i := range df.optionSpecs {
		spec := &df.optionSpecs[i]
		v, stored := df.options[spec.Key]
		if !stored {
			v = spec.Default
		}
		out[i] = types.Option{Spec: spec, Value: v, Stored: stored}
	}
	return out
}
