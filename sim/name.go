package sim

import "strings"

// Named describes an object that has a name.
type Named interface {
	// Name returns the name of the object.
	Name() string
}

// NameMustBeValid panics if the name does not follow the naming convention.
// A name is organized hierarchically with tokens separated by dots (e.g.,
// "Channel.RspBuf"). Tokens must not be empty and must not include
// underscores, quotes, or dashes.
func NameMustBeValid(name string) {
	tokens := strings.Split(name, ".")
	for _, token := range tokens {
		tokenMustBeValid(name, token)
	}
}

func tokenMustBeValid(name, token string) {
	if token == "" {
		panic("Name " + name + " is not valid: element must not be empty")
	}

	invalidChars := []string{"_", "\"", "'", "-", " "}
	for _, c := range invalidChars {
		if strings.Contains(token, c) {
			panic("Name " + name +
				" is not valid: element must not include " + c)
		}
	}
}
