// Package sanitizer normalizes user input before validation and storage.
//
// All functions are idempotent and never return errors: input that cannot be
// normalized comes back as an empty string, which validation then rejects.
package sanitizer
