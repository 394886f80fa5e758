package hostinfo

import (
	"github.com/joho/godotenv"
)

// OSReleasePath is where Linux distributions describe themselves.
const OSReleasePath = "/etc/os-release"

// Distro returns the distribution name from an os-release file, preferring
// PRETTY_NAME over NAME. It returns "Linux" when the file is missing or has neither.
func Distro(path string) string {
	vars, err := godotenv.Read(path)
	if err != nil {
		return "Linux"
	}
	if name := vars["PRETTY_NAME"]; name != "" {
		return name
	}
	if name := vars["NAME"]; name != "" {
		return name
	}
	return "Linux"
}
