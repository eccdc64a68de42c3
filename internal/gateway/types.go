package gateway

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// CameraStatus is the backend's view of the capture device.
type CameraStatus struct {
	Running       bool `json:"is_running"`
	Recording     bool `json:"is_recording"`
	FacesDetected int  `json:"faces_detected"`
}

// Frame is the latest encoded camera image, usually a JPEG data URL.
type Frame struct {
	Data      string    `json:"frame"`
	Timestamp time.Time `json:"timestamp"`
}

// Statistics are the dashboard counters.
type Statistics struct {
	TotalDetections int `json:"total_detections"`
	KnownPersons    int `json:"known_persons"`
	DetectionsToday int `json:"detections_today"`
	PendingAlerts   int `json:"pending_alerts"`
}

// Detection is one sighting, either of a known person or of an intruder.
type Detection struct {
	ID            int64     `json:"id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	PersonID      string    `json:"person_id,omitempty"`
	PersonName    string    `json:"person_name,omitempty"`
	Confidence    float64   `json:"confidence,omitempty"`
	FaceImagePath string    `json:"face_image_path,omitempty"`
	Intruder      bool      `json:"intruder"`
}

// Alert is a backend alert such as an unknown person sighting.
type Alert struct {
	ID           int64     `json:"id"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	Description  string    `json:"description"`
	PersonID     string    `json:"person_id,omitempty"`
	PersonName   string    `json:"person_name,omitempty"`
	Acknowledged bool      `json:"acknowledged"`
}

// CommandResult is the reply to a state-changing request.
type CommandResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Person is a registered (known) person.
type Person struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	DateAdded time.Time `json:"date_added"`
	ImagePath string    `json:"image_path,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// NewPerson is the payload to register a person. Image is a base64 data URL.
type NewPerson struct {
	Name  string `json:"name"`
	Notes string `json:"notes,omitempty"`
	Image string `json:"image"`
}

// PersonActivity summarises a known person's sightings within a day.
type PersonActivity struct {
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Intruder is a sighting of an unrecognised face.
type Intruder struct {
	ID            int64     `json:"id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	PersonID      string    `json:"person_id,omitempty"`
	FaceImagePath string    `json:"face_image_path,omitempty"`
	VideoPath     string    `json:"video_path,omitempty"`
}

// DailyReport is the per-day activity report.
type DailyReport struct {
	Date            string                    `json:"date"`
	TotalDetections int                       `json:"total_detections"`
	Persons         map[string]PersonActivity `json:"persons"`
	Intruders       []Intruder                `json:"intruders"`
}

// Health is the backend health probe reply.
type Health struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	CameraRunning bool      `json:"camera_running"`
}

// BackendSettings is the read-only detection configuration of the backend.
type BackendSettings struct {
	CameraID             int     `json:"camera_id"`
	CameraWidth          int     `json:"camera_width"`
	CameraHeight         int     `json:"camera_height"`
	DetectionConfidence  float64 `json:"detection_confidence"`
	RecognitionThreshold float64 `json:"recognition_threshold"`
	EnableRecording      bool    `json:"enable_recording"`
	EnableAlerts         bool    `json:"enable_alerts"`
}

// Wire representations. The backend mixes string and numeric ids, 0/1
// booleans and several timestamp layouts.

type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.TrimSpace(string(b)) {
	case "true", "1":
		*f = true
	case "false", "0", "null":
		*f = false
	default:
		n, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return err
		}
		*f = n != 0
	}
	return nil
}

type flexTime time.Time

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = flexTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*f = flexTime(t)
	return nil
}

// ParseTimestamp parses the timestamp layouts produced by the backend.
// An empty string yields the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

type wireFrame struct {
	envelope
	Frame     string   `json:"frame"`
	Timestamp flexTime `json:"timestamp"`
}

type wireStatistics struct {
	envelope
	Statistics Statistics `json:"statistics"`
}

type wireDetection struct {
	ID            int64      `json:"id"`
	Timestamp     flexTime   `json:"timestamp"`
	PersonID      flexString `json:"person_id"`
	PersonName    flexString `json:"person_name"`
	Confidence    float64    `json:"confidence"`
	FaceImagePath flexString `json:"face_image_path"`
	IsIntruder    *bool      `json:"is_intruder"`
}

func (w wireDetection) detection() Detection {
	d := Detection{
		ID:            w.ID,
		Timestamp:     time.Time(w.Timestamp),
		PersonID:      string(w.PersonID),
		PersonName:    string(w.PersonName),
		Confidence:    w.Confidence,
		FaceImagePath: string(w.FaceImagePath),
		Intruder:      w.PersonName == "",
	}
	if w.IsIntruder != nil {
		d.Intruder = *w.IsIntruder
	}
	return d
}

type wireDetections struct {
	envelope
	Detections []wireDetection `json:"detections"`
}

type wireAlert struct {
	ID           int64      `json:"id"`
	Timestamp    flexTime   `json:"timestamp"`
	AlertType    string     `json:"alert_type"`
	PersonID     flexString `json:"person_id"`
	PersonName   flexString `json:"person_name"`
	Description  string     `json:"description"`
	Acknowledged flexBool   `json:"acknowledged"`
}

func (w wireAlert) alert() Alert {
	return Alert{
		ID:           w.ID,
		Type:         w.AlertType,
		Timestamp:    time.Time(w.Timestamp),
		Description:  w.Description,
		PersonID:     string(w.PersonID),
		PersonName:   string(w.PersonName),
		Acknowledged: bool(w.Acknowledged),
	}
}

type wireAlerts struct {
	envelope
	Alerts []wireAlert `json:"alerts"`
}

type wirePerson struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	DateAdded flexTime   `json:"date_added"`
	ImagePath flexString `json:"image_path"`
	Notes     flexString `json:"notes"`
}

type wirePersons struct {
	envelope
	Students []wirePerson `json:"students"`
}

type wireActivity struct {
	Count     int      `json:"count"`
	FirstSeen flexTime `json:"first_seen"`
	LastSeen  flexTime `json:"last_seen"`
}

type wireIntruder struct {
	ID            int64      `json:"id"`
	Timestamp     flexTime   `json:"timestamp"`
	PersonID      flexString `json:"person_id"`
	FaceImagePath flexString `json:"face_image_path"`
	VideoPath     flexString `json:"video_path"`
}

func (w wireIntruder) intruder() Intruder {
	return Intruder{
		ID:            w.ID,
		Timestamp:     time.Time(w.Timestamp),
		PersonID:      string(w.PersonID),
		FaceImagePath: string(w.FaceImagePath),
		VideoPath:     string(w.VideoPath),
	}
}

type wireDailyReport struct {
	envelope
	Date            string                  `json:"date"`
	TotalDetections int                     `json:"total_detections"`
	Students        map[string]wireActivity `json:"students"`
	Intruders       []wireIntruder          `json:"intruders"`
}

type wireIntruders struct {
	envelope
	Intruders []wireIntruder `json:"intruders"`
}

type wireHealth struct {
	Status        string   `json:"status"`
	Timestamp     flexTime `json:"timestamp"`
	CameraRunning bool     `json:"camera_running"`
}
