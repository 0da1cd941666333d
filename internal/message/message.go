// Package message defines the normalized inbound and outbound contracts
// between platform adapters and the orchestrator.
package message

import "time"

// Content kinds carried by an inbound message.
const (
	KindText     = "text"
	KindCommand  = "command"
	KindVoice    = "voice"
	KindCallback = "callback"
	KindImage    = "image"
)

// Sender identifies the acting user within a platform.
type Sender struct {
	PlatformID  string `json:"platform_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// Text is free-form user text.
type Text struct {
	Text string `json:"text"`
}

// Command is a routed slash command with its arguments.
type Command struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
}

// Voice references an audio payload held by the platform or object storage.
type Voice struct {
	AudioRef string        `json:"audio_ref"`
	MimeType string        `json:"mime_type"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Callback is a button press with its opaque payload.
type Callback struct {
	Data      string `json:"data"`
	MessageID string `json:"message_id,omitempty"`
}

// Image references a photo payload.
type Image struct {
	ImageRef string `json:"image_ref"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
}

// Content is a tagged union: Kind names exactly one non-nil payload.
type Content struct {
	Kind     string    `json:"kind"`
	Text     *Text     `json:"text,omitempty"`
	Command  *Command  `json:"command,omitempty"`
	Voice    *Voice    `json:"voice,omitempty"`
	Callback *Callback `json:"callback,omitempty"`
	Image    *Image    `json:"image,omitempty"`
}

// Inbound is a normalized message produced by a platform adapter.
type Inbound struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Sender    Sender    `json:"sender"`
	Content   Content   `json:"content"`
	Locale    string    `json:"locale,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Button is an inline action attached to a response.
type Button struct {
	Label        string `json:"label"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// Response is the normalized reply returned to the platform adapter.
type Response struct {
	Text        string   `json:"text"`
	ParseMode   string   `json:"parse_mode,omitempty"`
	Buttons     []Button `json:"buttons,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// NewText builds a text content.
func NewText(text string) Content {
	return Content{Kind: KindText, Text: &Text{Text: text}}
}

// NewCommand builds a command content.
func NewCommand(name string, args ...string) Content {
	return Content{Kind: KindCommand, Command: &Command{Name: name, Args: args}}
}

// NewVoice builds a voice content.
func NewVoice(audioRef, mimeType string) Content {
	return Content{Kind: KindVoice, Voice: &Voice{AudioRef: audioRef, MimeType: mimeType}}
}

// NewCallback builds a callback content.
func NewCallback(data string) Content {
	return Content{Kind: KindCallback, Callback: &Callback{Data: data}}
}
