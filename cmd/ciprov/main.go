// Package main is the entry point for the ciprov CLI.
//
// ciprov provisions a Jenkins server on Google Kubernetes Engine. Every
// invocation stages the terraform and Ansible sources into a fresh run
// directory, creates only the cloud and cluster resources that are missing,
// binds a run-scoped kube context and hands over to ansible-playbook.
//
// The process exits 0 when the run succeeded and 1 otherwise.
package main

import (
	"fmt"
	"os"

	"github.com/kubeci-dev/ciprov/cmd/ciprov/commands"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var version, commit, date = "dev", "none", "unknown"

func main() {
	os.Exit(run())
}

func run() int {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
