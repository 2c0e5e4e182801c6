package instructions

import (
	"os"
	"path/filepath"
)

// personalInstructionsFile holds the user's standing preferences under the
// assistant home directory.
const personalInstructionsFile = "instructions.md"

// LoadPersonalInstructions reads {home}/instructions.md. A missing file is
// not an error; it just means the user has no standing preferences.
func LoadPersonalInstructions(home string) (string, error) {
	data, err := os.ReadFile(filepath.Join(home, personalInstructionsFile))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
