// Package common contains the configuration and logging helpers shared by the
// feedstore packages and the command-line tool.
//
// Logging follows the dragonboat logger abstraction: packages obtain a named
// logger with GetLogger (or logger.GetLogger directly) at init time, and
// InitLoggers installs the custom factory and the configured level later.
// Output lines look like:
//
//	2025/01/01 12:00:00 INFO  | feedstore  | store feed created
package common
