package actions

import (
	"bytes"
	"encoding/json"

	"github.com/Amund211/coursesync/internal/domain"
)

type Type string

const (
	TypeFetchRequested  Type = "fetch/requested"
	TypeFetched         Type = "fetch/completed"
	TypeRevoked         Type = "entity/revoked"
	TypeDeleteRequested Type = "delete/requested"
	TypeDeleted         Type = "delete/completed"
	TypeMutateRequested Type = "mutate/requested"
	TypeLoginSucceeded  Type = "auth/login-succeeded"
	TypeLoggedOut       Type = "auth/logged-out"
)

// Action is a tagged, immutable message. The set of actions is closed.
type Action interface {
	Type() Type
	withSeq(seq uint64) Action
}

// Stamp returns a copy of the action carrying the given dispatch sequence number
func Stamp(action Action, seq uint64) Action {
	return action.withSeq(seq)
}

type FetchRequested struct {
	Seq    uint64
	Kind   domain.Kind
	Params Params
}

func Fetch(kind domain.Kind, params ...Param) FetchRequested {
	return FetchRequested{Kind: kind, Params: NewParams(params...)}
}

func (a FetchRequested) Key() Key {
	return KeyOf(a.Kind, a.Params)
}

type Fetched struct {
	Seq uint64
	// RequestSeq is the sequence number of the FetchRequested this completes
	RequestSeq uint64
	Kind       domain.Kind
	Params     Params
	Value      any
	Err        error
}

// Completed builds the completion for req. A non-nil err makes it a failure.
func Completed(req FetchRequested, value any, err error) Fetched {
	if err != nil {
		value = nil
	}
	return Fetched{
		RequestSeq: req.Seq,
		Kind:       req.Kind,
		Params:     req.Params,
		Value:      value,
		Err:        err,
	}
}

func (a Fetched) Key() Key {
	return KeyOf(a.Kind, a.Params)
}

func (a Fetched) Failed() bool {
	return a.Err != nil
}

// Revoked merges a local update into a cached slot without a round trip
type Revoked struct {
	Seq    uint64
	Key    Key
	ItemID string
	Patch  json.RawMessage
}

func Revoke(key Key, itemID string, patch []byte) Revoked {
	return Revoked{Key: key, ItemID: itemID, Patch: bytes.Clone(patch)}
}

type DeleteRequested struct {
	Seq    uint64
	Kind   domain.Kind
	Params Params

	OnDelete func(ids ...string)
	OnError  func(err error, ids ...string)
}

func DeleteRequest(kind domain.Kind, params Params, onDelete func(ids ...string), onError func(err error, ids ...string)) DeleteRequested {
	return DeleteRequested{
		Kind:     kind,
		Params:   params,
		OnDelete: onDelete,
		OnError:  onError,
	}
}

// LaneKey covers every param so deletes of different items under one parent do not collide
func (a DeleteRequested) LaneKey() Key {
	return KeyOf(a.Kind, a.Params)
}

type Deleted struct {
	Seq        uint64
	RequestSeq uint64
	Key        Key
	ItemID     string
}

func DeleteCompleted(req DeleteRequested, slot Key, itemID string) Deleted {
	return Deleted{
		RequestSeq: req.Seq,
		Key:        slot,
		ItemID:     itemID,
	}
}

type MutateRequested struct {
	Seq    uint64
	Kind   domain.Kind
	Method string
	Params Params
	Body   json.RawMessage

	OnDone  func(data json.RawMessage)
	OnError func(err error)
}

func Mutate(kind domain.Kind, method string, params Params, body []byte) MutateRequested {
	return MutateRequested{
		Kind:   kind,
		Method: method,
		Params: params,
		Body:   bytes.Clone(body),
	}
}

func (a MutateRequested) WithCallbacks(onDone func(data json.RawMessage), onError func(err error)) MutateRequested {
	a.OnDone = onDone
	a.OnError = onError
	return a
}

type LoginSucceeded struct {
	Seq         uint64
	Credentials domain.Credentials
}

func Login(credentials domain.Credentials) LoginSucceeded {
	return LoginSucceeded{Credentials: credentials}
}

type LoggedOut struct {
	Seq uint64
}

func Logout() LoggedOut {
	return LoggedOut{}
}

func (a FetchRequested) Type() Type  { return TypeFetchRequested }
func (a Fetched) Type() Type         { return TypeFetched }
func (a Revoked) Type() Type         { return TypeRevoked }
func (a DeleteRequested) Type() Type { return TypeDeleteRequested }
func (a Deleted) Type() Type         { return TypeDeleted }
func (a MutateRequested) Type() Type { return TypeMutateRequested }
func (a LoginSucceeded) Type() Type  { return TypeLoginSucceeded }
func (a LoggedOut) Type() Type       { return TypeLoggedOut }

func (a FetchRequested) withSeq(seq uint64) Action  { a.Seq = seq; return a }
func (a Fetched) withSeq(seq uint64) Action         { a.Seq = seq; return a }
func (a Revoked) withSeq(seq uint64) Action         { a.Seq = seq; return a }
func (a DeleteRequested) withSeq(seq uint64) Action { a.Seq = seq; return a }
func (a Deleted) withSeq(seq uint64) Action         { a.Seq = seq; return a }
func (a MutateRequested) withSeq(seq uint64) Action { a.Seq = seq; return a }
func (a LoginSucceeded) withSeq(seq uint64) Action  { a.Seq = seq; return a }
func (a LoggedOut) withSeq(seq uint64) Action       { a.Seq = seq; return a }

// TargetKey returns the slot a state-changing action writes to
func TargetKey(action Action) (Key, bool) {
	switch a := action.(type) {
	case Fetched:
		return a.Key(), true
	case Revoked:
		return a.Key, true
	case Deleted:
		return a.Key, true
	default:
		return Key{}, false
	}
}
