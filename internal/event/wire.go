package event

import (
	"encoding/json"
	"fmt"
)

// wireCommand is the JSON framing for command payloads: a type tag plus the
// command's own fields. The same encoding is used on the NATS wire and in
// envelope payloads, so event-log replay re-parses commands exactly as they
// first arrived.
type wireCommand struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalCommand encodes a command for the wire and the event log
func MarshalCommand(cmd Command) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", cmd.CommandType(), err)
	}
	return json.Marshal(wireCommand{
		Type: cmd.CommandType().String(),
		Data: data,
	})
}

// UnmarshalCommand decodes a wire payload into its concrete command type
func UnmarshalCommand(payload []byte) (Command, error) {
	var wire wireCommand
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("unmarshal command frame: %w", err)
	}

	var cmd Command
	switch wire.Type {
	case "JoinPool":
		cmd = &JoinPool{}
	case "PayPremium":
		cmd = &PayPremium{}
	case "UpdateRiskScore":
		cmd = &UpdateRiskScore{}
	case "SubmitClaim":
		cmd = &SubmitClaim{}
	case "CastVote":
		cmd = &CastVote{}
	case "ProcessClaim":
		cmd = &ProcessClaim{}
	case "DistributeSurplus":
		cmd = &DistributeSurplus{}
	case "SetOracle":
		cmd = &SetOracle{}
	case "SetPoolActive":
		cmd = &SetPoolActive{}
	default:
		return nil, fmt.Errorf("unknown command type %q", wire.Type)
	}

	if err := json.Unmarshal(wire.Data, cmd); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", wire.Type, err)
	}
	return cmd, nil
}
