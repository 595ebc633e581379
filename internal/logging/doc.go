// Package logging provides the slog construction and attribute helpers used
// across picshrink. It offers a console handler for interactive use and a
// JSON handler for machine consumption, plus component-scoped loggers and a
// no-op logger for tests.
package logging
