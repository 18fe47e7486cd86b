package chat

import (
	"io"

	"github.com/ezhuang13/codeu-project-2017/codec"
)

// Opcode tags a wire frame with the exchange it belongs to.
type Opcode int32

const (
	// OpNoMessage is the sentinel response for unrecognized requests.
	// The client still gets a frame; the connection then closes per the
	// normal per-request lifecycle.
	OpNoMessage Opcode = iota

	OpNewMessageRequest
	OpNewMessageResponse
	OpNewUserRequest
	OpNewUserResponse
	OpLoginRequest
	OpLoginResponse
	OpNewConversationRequest
	OpNewConversationResponse

	OpGetUsersByIDRequest
	OpGetUsersByIDResponse
	OpGetUsersExcludingRequest
	OpGetUsersExcludingResponse
	OpGetAllConversationsRequest
	OpGetAllConversationsResponse
	OpGetConversationsByIDRequest
	OpGetConversationsByIDResponse
	OpGetConversationsByTimeRequest
	OpGetConversationsByTimeResponse
	OpGetConversationsByTitleRequest
	OpGetConversationsByTitleResponse
	OpGetMessagesByIDRequest
	OpGetMessagesByIDResponse
	OpGetMessagesByTimeRequest
	OpGetMessagesByTimeResponse
	OpGetMessagesByRangeRequest
	OpGetMessagesByRangeResponse

	OpServerPublicKeyRequest
	OpServerPublicKeyResponse

	// Relay protocol frames, spoken between a server and its relay.
	OpRelayReadRequest
	OpRelayReadResponse
	OpRelayWriteRequest
	OpRelayWriteResponse
)

// WriteOpcode emits the 4-byte frame tag.
func WriteOpcode(w io.Writer, op Opcode) error {
	return codec.Int32.Write(w, int32(op))
}

// ReadOpcode reads the 4-byte frame tag.
func ReadOpcode(r io.Reader) (Opcode, error) {
	v, err := codec.Int32.Read(r)
	if err != nil {
		return OpNoMessage, err
	}
	return Opcode(v), nil
}

func (op Opcode) String() string {
	names := map[Opcode]string{
		OpNoMessage:                       "NO_MESSAGE",
		OpNewMessageRequest:               "NEW_MESSAGE_REQUEST",
		OpNewMessageResponse:              "NEW_MESSAGE_RESPONSE",
		OpNewUserRequest:                  "NEW_USER_REQUEST",
		OpNewUserResponse:                 "NEW_USER_RESPONSE",
		OpLoginRequest:                    "LOGIN_REQUEST",
		OpLoginResponse:                   "LOGIN_RESPONSE",
		OpNewConversationRequest:          "NEW_CONVERSATION_REQUEST",
		OpNewConversationResponse:         "NEW_CONVERSATION_RESPONSE",
		OpGetUsersByIDRequest:             "GET_USERS_BY_ID_REQUEST",
		OpGetUsersByIDResponse:            "GET_USERS_BY_ID_RESPONSE",
		OpGetUsersExcludingRequest:        "GET_USERS_EXCLUDING_REQUEST",
		OpGetUsersExcludingResponse:       "GET_USERS_EXCLUDING_RESPONSE",
		OpGetAllConversationsRequest:      "GET_ALL_CONVERSATIONS_REQUEST",
		OpGetAllConversationsResponse:     "GET_ALL_CONVERSATIONS_RESPONSE",
		OpGetConversationsByIDRequest:     "GET_CONVERSATIONS_BY_ID_REQUEST",
		OpGetConversationsByIDResponse:    "GET_CONVERSATIONS_BY_ID_RESPONSE",
		OpGetConversationsByTimeRequest:   "GET_CONVERSATIONS_BY_TIME_REQUEST",
		OpGetConversationsByTimeResponse:  "GET_CONVERSATIONS_BY_TIME_RESPONSE",
		OpGetConversationsByTitleRequest:  "GET_CONVERSATIONS_BY_TITLE_REQUEST",
		OpGetConversationsByTitleResponse: "GET_CONVERSATIONS_BY_TITLE_RESPONSE",
		OpGetMessagesByIDRequest:          "GET_MESSAGES_BY_ID_REQUEST",
		OpGetMessagesByIDResponse:         "GET_MESSAGES_BY_ID_RESPONSE",
		OpGetMessagesByTimeRequest:        "GET_MESSAGES_BY_TIME_REQUEST",
		OpGetMessagesByTimeResponse:       "GET_MESSAGES_BY_TIME_RESPONSE",
		OpGetMessagesByRangeRequest:       "GET_MESSAGES_BY_RANGE_REQUEST",
		OpGetMessagesByRangeResponse:      "GET_MESSAGES_BY_RANGE_RESPONSE",
		OpServerPublicKeyRequest:          "SERVER_PUBLIC_KEY_REQUEST",
		OpServerPublicKeyResponse:         "SERVER_PUBLIC_KEY_RESPONSE",
		OpRelayReadRequest:                "RELAY_READ_REQUEST",
		OpRelayReadResponse:               "RELAY_READ_RESPONSE",
		OpRelayWriteRequest:               "RELAY_WRITE_REQUEST",
		OpRelayWriteResponse:              "RELAY_WRITE_RESPONSE",
	}
	if name, ok := names[op]; ok {
		return name
	}
	return "UNKNOWN"
}
