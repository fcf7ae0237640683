// Package valueparser turns raw bytes into a structured value using an
// explicit or auto-detected format.
//
// Four formats are supported: dotenv (a flat string map, parsed with
// joho/godotenv), json and yaml (arbitrary structured values), and text
// (the raw string, unmodified). Binary bytes that fail to parse under the
// requested format fall back to their base64 encoding when the caller
// asked for a string-typed result.
package valueparser
