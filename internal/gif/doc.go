// Package gif holds typed handles for the remote services of a deployed
// instance: the oracle owner service, the instance operator service, the
// oracle service and the product service. Each handle wraps one resolved
// address and exposes the narrow set of registration and approval calls the
// deployment pipeline needs. Handles never retry; every failure is reported
// as either a RemoteCallError (delivery) or a RejectedError (refused by the
// backend).
package gif
