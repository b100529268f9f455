package flow

import "time"

// State is a request's position in the gateway pipeline.
type State int

const (
	Received   State = iota // raw frame or update accepted by a transport
	Decoded                 // frame parsed into a DecodedRequest
	Annotated               // client, credentials, URL and parameters resolved
	Dispatched              // upstream call issued
	Responded               // upstream answered (any status)
	Replied                 // reply bytes produced
	Failed
)

var StateTextMap = map[State]string{
	Received:   "received",
	Decoded:    "decoded",
	Annotated:  "annotated",
	Dispatched: "dispatched",
	Responded:  "responded",
	Replied:    "replied",
	Failed:     "failed",
}

func (s State) String() string {
	if t, ok := StateTextMap[s]; ok {
		return t
	}
	return "unknown"
}

// Replies written by the update endpoint.
const (
	UpdateSuccess = "SUCCESS"
	UpdateFailure = "FAILURE"
)

var timeNow = time.Now

func EpochTime() int64 {
	return timeNow().Unix()
}

func SetTimNowFn(f func() time.Time) {
	timeNow = f
}

func RestoreTimeNow() {
	timeNow = time.Now
}
