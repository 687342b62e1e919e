package protocol

import "fmt"

// Error acknowledgment messages fixed by the wire contract. Clients match
// on these strings, so they change only with the protocol version.
const MsgTargetNotSpecified = "Target child not specified"

// MsgTargetNotFound names a target that is absent or not a live agent.
func MsgTargetNotFound(targetID string) string {
	return fmt.Sprintf("Target child %s not found or offline", targetID)
}

// MsgUnknownKind names a report kind outside the recognized set.
func MsgUnknownKind(kind string) string {
	return fmt.Sprintf("Unknown data type: %s", kind)
}

// MsgProcessingError reports a failure while handling an agent frame.
func MsgProcessingError(err error) string {
	return fmt.Sprintf("Processing error: %v", err)
}

// MsgCommandError reports a failure while handling a controller frame.
func MsgCommandError(err error) string {
	return fmt.Sprintf("Error executing command: %v", err)
}
