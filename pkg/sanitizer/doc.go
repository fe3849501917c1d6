// Package sanitizer normalizes free-text input before validation and
// storage. Functions are idempotent and handle invalid input by returning
// empty strings rather than errors.
package sanitizer
