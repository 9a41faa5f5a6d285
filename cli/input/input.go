/*
Package input reads interactive user input such as account passwords.
*/
package input

import "strings"

// ReadPassword reads user password with prompt. Trailing newlines are
// removed.
func ReadPassword(prompt string) (string, error) {
	pass, err := readSecurePassword(prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(pass, "\r\n"), nil
}
