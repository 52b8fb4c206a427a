// Package remotescript composes the remote execution unit: the ordered
// sequence of idempotent shell steps (provision, deploy, configure proxy,
// validate) that is transmitted to the remote host as one SSH round trip.
//
// The transport is a single command channel, so from the controller's view
// the unit is one opaque blocking call. Internally the unit is strictly
// sequential and aborts on its first failure. Each step is defined
// separately so it can be inspected and tested without a live remote host.
//
// Failures inside the unit surface through the script's exit status:
//
//   - domain.ExitProxyConfigInvalid when nginx rejects the generated rule
//   - domain.ExitNoRunningContainers when the stack has no running container
//   - domain.ExitRemoteUnitFailed for every other internal failure,
//     including a missing passwordless-sudo privilege
//
// This package contains pure string composition with no I/O.
package remotescript
