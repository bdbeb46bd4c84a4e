package models

// ConfirmationState names the handshake position of a session. The order is
// intentionally asymmetric: the provider commits first, the requester only
// afterwards.
type ConfirmationState string

const (
	ConfirmationOpen              ConfirmationState = "OPEN"
	ConfirmationProviderConfirmed ConfirmationState = "PROVIDER_CONFIRMED"
	ConfirmationBothConfirmed     ConfirmationState = "CONFIRMED"
)

// ConfirmationRole identifies which party is acting on the handshake.
type ConfirmationRole string

const (
	RoleProvider  ConfirmationRole = "provider"
	RoleRequester ConfirmationRole = "requester"
)

// ConfirmationStateOf derives the handshake state from the two flags.
// requesterConfirmed never holds without providerConfirmed; if a document
// ever carries that combination it still reads as OPEN pending repair
// rather than a bogus terminal state.
func ConfirmationStateOf(providerConfirmed, requesterConfirmed bool) ConfirmationState {
	switch {
	case providerConfirmed && requesterConfirmed:
		return ConfirmationBothConfirmed
	case providerConfirmed:
		return ConfirmationProviderConfirmed
	default:
		return ConfirmationOpen
	}
}

// CanConfirm is the guarded transition table: it reports whether role may
// confirm from state, and whether doing so is a fresh transition or an
// idempotent repeat.
func CanConfirm(state ConfirmationState, role ConfirmationRole) (allowed, repeat bool) {
	switch role {
	case RoleProvider:
		switch state {
		case ConfirmationOpen:
			return true, false
		case ConfirmationProviderConfirmed, ConfirmationBothConfirmed:
			return true, true
		}
	case RoleRequester:
		switch state {
		case ConfirmationProviderConfirmed:
			return true, false
		case ConfirmationBothConfirmed:
			return true, true
		case ConfirmationOpen:
			return false, false
		}
	}
	return false, false
}
