package domain

// HandshakeStrategy tells the verifier where to look for the marker a
// webhook provider sends during endpoint verification.
type HandshakeStrategy string

const (
	HandshakeHeaderPresent    HandshakeStrategy = "HEADER_PRESENT"
	HandshakeQueryPresent     HandshakeStrategy = "QUERY_PRESENT"
	HandshakeBodyParamPresent HandshakeStrategy = "BODY_PARAM_PRESENT"
)

// HandshakeConfig is attached to a trigger definition; nil means the
// trigger has no handshake step.
type HandshakeConfig struct {
	Strategy  HandshakeStrategy `json:"strategy"`
	ParamName string            `json:"paramName"`
}
