// Package gateway is the single place external processes are spawned.
//
// Every other package talks to gcloud, kubectl, terraform and
// ansible-playbook through the Runner interface. A non-zero exit status or
// an executable that cannot be started is reported as a *CommandError
// carrying the captured stderr and exit code; callers decide whether that
// failure is fatal or an expected "absent" signal. Nothing here retries or
// enforces a timeout.
package gateway
