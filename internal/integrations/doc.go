// ABOUTME: Package integrations implements the capability handlers the
// ABOUTME: service manager can enable: github, slack, google_drive, azure, vscode

// Package integrations provides the concrete service.Handler implementations
// and the Factories registry the gateway wires into its service manager.
package integrations
