package domain

import "time"

// Picker session states.
const (
	SessionStatusUnspecified = "SESSION_STATUS_UNSPECIFIED"
	SessionStatusActive      = "SESSION_STATUS_ACTIVE"
	SessionStatusComplete    = "SESSION_STATUS_COMPLETE"
	SessionStatusExpired     = "SESSION_STATUS_EXPIRED"
)

// PickingSession is a Google Photos Picker session.
type PickingSession struct {
	ID            string         `json:"id"`
	PickerURI     string         `json:"pickerUri"`
	PollingConfig *PollingConfig `json:"pollingConfig,omitempty"`
	ExpireTime    time.Time      `json:"expireTime,omitempty"`
	MediaItemsSet bool           `json:"mediaItemsSet"`
	Status        string         `json:"status,omitempty"`
}

// IsComplete returns true once the user finished picking.
func (s *PickingSession) IsComplete() bool {
	return s.MediaItemsSet || s.Status == SessionStatusComplete
}

// IsExpired returns true if the session expired before the user finished.
func (s *PickingSession) IsExpired() bool {
	return s.Status == SessionStatusExpired
}

// PollingConfig is the server's suggestion for how to poll a session.
// Durations are encoded as strings such as "5s" or "3.5s".
type PollingConfig struct {
	PollInterval string `json:"pollInterval,omitempty"`
	TimeoutIn    string `json:"timeoutIn,omitempty"`
}

// Interval parses PollInterval. Returns zero if absent or malformed.
func (p *PollingConfig) Interval() time.Duration {
	if p == nil {
		return 0
	}
	return parseProtoDuration(p.PollInterval)
}

// Timeout parses TimeoutIn. Returns zero if absent or malformed.
func (p *PollingConfig) Timeout() time.Duration {
	if p == nil {
		return 0
	}
	return parseProtoDuration(p.TimeoutIn)
}

func parseProtoDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// SessionOptions restricts what the user can pick.
type SessionOptions struct {
	// Features such as "FAVORITES".
	Features []string
	// MediaTypes such as MediaTypePhoto.
	MediaTypes []string
}

// WaitOptions tunes the wait for a picking session to complete.
type WaitOptions struct {
	// Timeout overrides the server's pollingConfig.timeoutIn.
	Timeout time.Duration
	// PollInterval overrides the server's pollingConfig.pollInterval.
	PollInterval time.Duration
	// OnPoll, if set, observes every polled session.
	OnPoll func(*PickingSession)
}

// Media types accepted by filters.
const (
	MediaTypeAll   = "ALL_MEDIA"
	MediaTypePhoto = "PHOTO"
	MediaTypeVideo = "VIDEO"
)

// PickedMediaItem is a media item selected in a Picker session.
type PickedMediaItem struct {
	ID         string     `json:"id"`
	CreateTime time.Time  `json:"createTime"`
	Type       string     `json:"type"`
	MediaFile  *MediaFile `json:"mediaFile,omitempty"`
}

// MediaFile holds the downloadable bytes of a picked item.
type MediaFile struct {
	BaseURL           string             `json:"baseUrl"`
	MimeType          string             `json:"mimeType"`
	Filename          string             `json:"filename"`
	MediaFileMetadata *MediaFileMetadata `json:"mediaFileMetadata,omitempty"`
}

// MediaFileMetadata describes dimensions and capture details.
type MediaFileMetadata struct {
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	CameraMake  string `json:"cameraMake,omitempty"`
	CameraModel string `json:"cameraModel,omitempty"`
}

// MediaItem is a Library API media item (app-created data only).
type MediaItem struct {
	ID            string         `json:"id"`
	Description   string         `json:"description,omitempty"`
	ProductURL    string         `json:"productUrl"`
	BaseURL       string         `json:"baseUrl"`
	MimeType      string         `json:"mimeType"`
	Filename      string         `json:"filename"`
	MediaMetadata *MediaMetadata `json:"mediaMetadata,omitempty"`
}

// MediaMetadata is the Library API metadata block.
type MediaMetadata struct {
	CreationTime time.Time `json:"creationTime"`
	Width        string    `json:"width,omitempty"`
	Height       string    `json:"height,omitempty"`
	Photo        *struct{} `json:"photo,omitempty"`
	Video        *struct{} `json:"video,omitempty"`
}

// IsVideo returns true if the item is a video.
func (m *MediaItem) IsVideo() bool {
	return m.MediaMetadata != nil && m.MediaMetadata.Video != nil
}

// Album is a Library API album.
type Album struct {
	ID                    string `json:"id"`
	Title                 string `json:"title"`
	ProductURL            string `json:"productUrl"`
	IsWriteable           bool   `json:"isWriteable,omitempty"`
	MediaItemsCount       string `json:"mediaItemsCount,omitempty"`
	CoverPhotoBaseURL     string `json:"coverPhotoBaseUrl,omitempty"`
	CoverPhotoMediaItemID string `json:"coverPhotoMediaItemId,omitempty"`
}
