// Package transport implements the phone<->host wire protocol over a
// bidirectional message channel: client messages are length-delimited JSON
// text frames tagged by a "t" field, interleaved with raw binary frames
// carrying JPEG/PNG camera images. TLS and the operator dashboard are out
// of scope; see pkg/session for what each message does once parsed.
package transport

import (
	"encoding/json"
	"fmt"
)

// ClientEnabled is the per-source enable set carried by a ConfigMsg.
// Fields are pointers so a config message can update a subset of sources
// without the JSON decoder zeroing the rest.
type ClientEnabled struct {
	Camera      *bool `json:"camera,omitempty"`
	Accel       *bool `json:"accel,omitempty"`
	Gyro        *bool `json:"gyro,omitempty"`
	Orientation *bool `json:"orientation,omitempty"`
}

// ClientFusionOverride carries the optional per-session fusion tuning
// overrides a ConfigMsg may include. All fields are optional; absent
// fields keep the session's current value.
type ClientFusionOverride struct {
	CameraGateEnabled               *bool    `json:"cameraGateEnabled,omitempty"`
	CameraMaxAgeMs                  *float64 `json:"cameraMaxAgeMs,omitempty"`
	CameraStillPx                   *float64 `json:"cameraStillPx,omitempty"`
	CameraValidatorMinPx            *float64 `json:"cameraValidatorMinPx,omitempty"`
	ImuMinPxWhenCameraStill         *float64 `json:"imuMinPxWhenCameraStill,omitempty"`
	ImuOppositeMaxPxWhenCameraStill *float64 `json:"imuOppositeMaxPxWhenCameraStill,omitempty"`
	MaxAngleDeg                     *float64 `json:"maxAngleDeg,omitempty"`
	MinMag                          *float64 `json:"minMag,omitempty"`
	WeakFallbackScale               *float64 `json:"weakFallbackScale,omitempty"`
}

// HelloMsg is the client's opening handshake message.
type HelloMsg struct {
	ClientVersion string `json:"clientVersion"`
	Device        string `json:"device"`
}

// ConfigMsg reconfigures a session's tuning and resets all filter state.
type ConfigMsg struct {
	Sensitivity          *float64               `json:"sensitivity,omitempty"`
	CameraFps            *int                   `json:"cameraFps,omitempty"`
	Enabled              *ClientEnabled         `json:"enabled,omitempty"`
	ScreenAngle          *int                   `json:"screenAngle,omitempty"`
	SmoothingHalfLifeMs  *float64               `json:"smoothingHalfLifeMs,omitempty"`
	DeadzonePx           *float64               `json:"deadzonePx,omitempty"`
	Fusion               *ClientFusionOverride  `json:"fusion,omitempty"`
}

// ClickMsg requests a mouse button press or release.
type ClickMsg struct {
	Button string `json:"button"`
	State  string `json:"state"`
}

// ScrollMsg requests a scroll event.
type ScrollMsg struct {
	Delta float64 `json:"delta"`
}

// MoveDeltaMsg carries a pre-computed cursor delta, bypassing fusion's
// per-sample sources entirely (the "delta" source).
type MoveDeltaMsg struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// ImuSampleMsg carries one inertial measurement sample. Fields are
// pointers: an absent field means "no reading this tick" for that
// instrument, not zero.
type ImuSampleMsg struct {
	TS    *float64 `json:"ts,omitempty"`
	AX    *float64 `json:"ax,omitempty"`
	AY    *float64 `json:"ay,omitempty"`
	AZ    *float64 `json:"az,omitempty"`
	GX    *float64 `json:"gx,omitempty"`
	GY    *float64 `json:"gy,omitempty"`
	GZ    *float64 `json:"gz,omitempty"`
	Alpha *float64 `json:"alpha,omitempty"`
	Beta  *float64 `json:"beta,omitempty"`
	Gamma *float64 `json:"gamma,omitempty"`
}

// CamFrameMetaMsg precedes the binary frame it describes; the server
// holds onto it until the next binary frame arrives.
type CamFrameMetaMsg struct {
	Seq    int     `json:"seq"`
	TS     float64 `json:"ts"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Mime   string  `json:"mime"`
}

// MessageType enumerates the "t" discriminator values recognized on the
// client->server direction.
type MessageType string

const (
	MsgHello    MessageType = "hello"
	MsgConfig   MessageType = "config"
	MsgClick    MessageType = "input.click"
	MsgScroll   MessageType = "input.scroll"
	MsgMoveDelta MessageType = "move.delta"
	MsgImuSample MessageType = "imu.sample"
	MsgCamFrame MessageType = "cam.frame"
)

// ClientMessage is a parsed, type-tagged client text frame. Exactly one of
// the typed fields is non-nil, matching Type.
type ClientMessage struct {
	Type      MessageType
	Hello     *HelloMsg
	Config    *ConfigMsg
	Click     *ClickMsg
	Scroll    *ScrollMsg
	MoveDelta *MoveDeltaMsg
	ImuSample *ImuSampleMsg
	CamFrame  *CamFrameMetaMsg
}

type envelope struct {
	T string `json:"t"`
}

// ParseClientMessage decodes one JSON text frame into a typed
// ClientMessage. An unrecognized "t" is not an error at this layer; it is
// surfaced via Type so the caller can decide how to report it.
func ParseClientMessage(raw []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ClientMessage{}, fmt.Errorf("transport: malformed client message: %w", err)
	}
	if env.T == "" {
		return ClientMessage{}, fmt.Errorf("transport: missing or invalid 't' field")
	}

	msg := ClientMessage{Type: MessageType(env.T)}
	var err error
	switch msg.Type {
	case MsgHello:
		msg.Hello = new(HelloMsg)
		err = json.Unmarshal(raw, msg.Hello)
	case MsgConfig:
		msg.Config = new(ConfigMsg)
		err = json.Unmarshal(raw, msg.Config)
	case MsgClick:
		msg.Click = new(ClickMsg)
		err = json.Unmarshal(raw, msg.Click)
	case MsgScroll:
		msg.Scroll = new(ScrollMsg)
		err = json.Unmarshal(raw, msg.Scroll)
	case MsgMoveDelta:
		msg.MoveDelta = new(MoveDeltaMsg)
		err = json.Unmarshal(raw, msg.MoveDelta)
	case MsgImuSample:
		msg.ImuSample = new(ImuSampleMsg)
		err = json.Unmarshal(raw, msg.ImuSample)
	case MsgCamFrame:
		msg.CamFrame = new(CamFrameMetaMsg)
		err = json.Unmarshal(raw, msg.CamFrame)
	default:
		return msg, nil
	}
	if err != nil {
		return ClientMessage{}, fmt.Errorf("transport: decoding %q message: %w", env.T, err)
	}
	return msg, nil
}

// ServerStateMsg is sent in reply to hello/config.
type ServerStateMsg struct {
	T           string `json:"t"`
	OK          *bool  `json:"ok,omitempty"`
	Configured  *bool  `json:"configured,omitempty"`
}

// ErrorMsg reports a malformed or unsupported client message.
type ErrorMsg struct {
	T       string `json:"t"`
	Message string `json:"message"`
}
