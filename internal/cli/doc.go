// Package cli turns command-line arguments and GIFDEPLOY_* environment
// variables into an app.Config. It knows nothing about running the
// deployment itself.
package cli
