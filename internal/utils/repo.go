package utils

import (
	"fmt"
	"strings"
)

// SplitFullName splits a GitHub "owner/name" repository name into its components.
func SplitFullName(fullName string) (owner, name string, err error) {
	parts := strings.Split(strings.Trim(fullName, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name %q", fullName)
	}

	return parts[0], parts[1], nil
}
