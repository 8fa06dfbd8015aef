package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PublishImageIDs writes discovered AMI IDs back into the images section of
// the config file. It is a read-merge-write: unrelated keys in the file are
// preserved, existing image entries are overwritten (last writer wins).
//
// This is the only write path into the config source; everything else treats
// it as read-only.
func PublishImageIDs(path string, ids map[Role]string) error {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file for image publish: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config file for image publish: %w", err)
	}
	if raw == nil {
		raw = make(map[string]interface{})
	}

	images, _ := raw["images"].(map[string]interface{})
	if images == nil {
		images = make(map[string]interface{})
	}
	for role, id := range ids {
		images[string(role)] = id
	}
	raw["images"] = images

	out, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal config file: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
