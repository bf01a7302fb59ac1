package model

import "time"

// JobStatus is the overall state of a subtitle processing job
type JobStatus string

const (
	JobStatusPending       JobStatus = "pending"
	JobStatusTranscribing  JobStatus = "transcribing"
	JobStatusGeneratingSrt JobStatus = "generating_srt"
	JobStatusTranslating   JobStatus = "translating"
	JobStatusCompleted     JobStatus = "completed"
	JobStatusFailed        JobStatus = "failed"
	JobStatusCancelled     JobStatus = "cancelled"
)

// IsTerminal reports whether no further processing happens without an explicit retry
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// TranslationStatus is the state of one requested language within a job
type TranslationStatus string

const (
	TranslationStatusPending    TranslationStatus = "pending"
	TranslationStatusInProgress TranslationStatus = "in_progress"
	TranslationStatusCompleted  TranslationStatus = "completed"
	TranslationStatusFailed     TranslationStatus = "failed"
)

// SourceType describes where the source video lives
type SourceType string

const (
	SourceTypeDirect  SourceType = "direct"
	SourceTypeYouTube SourceType = "youtube"
	SourceTypeVimeo   SourceType = "vimeo"
)

// ParseSourceType validates a source type string
func ParseSourceType(s string) (SourceType, bool) {
	switch SourceType(s) {
	case SourceTypeDirect, SourceTypeYouTube, SourceTypeVimeo:
		return SourceType(s), true
	default:
		return "", false
	}
}

// EnglishCode is the canonical source and first output language
const EnglishCode = "en"

// ToolboxTalk is the training talk a subtitle job belongs to
type ToolboxTalk struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SubtitleJob represents one end-to-end processing attempt for a talk video
type SubtitleJob struct {
	ID             string                       `json:"id" db:"id"`
	TenantID       string                       `json:"tenant_id" db:"tenant_id"`
	ToolboxTalkID  string                       `json:"toolbox_talk_id" db:"toolbox_talk_id"`
	SourceVideoURL string                       `json:"source_video_url" db:"source_video_url"`
	SourceType     SourceType                   `json:"source_type" db:"source_type"`
	Status         JobStatus                    `json:"status" db:"status"`
	ErrorMessage   *string                      `json:"error_message,omitempty" db:"error_message"`
	CreatedAt      time.Time                    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at" db:"updated_at"`
	Languages      []*LanguageTranslationRecord `json:"languages,omitempty" db:"-"`
}

// Language returns the record for code, or nil when that language was not requested
func (j *SubtitleJob) Language(code string) *LanguageTranslationRecord {
	for _, l := range j.Languages {
		if l.LanguageCode == code {
			return l
		}
	}
	return nil
}

// LanguageCodes returns the requested language codes in stored order
func (j *SubtitleJob) LanguageCodes() []string {
	codes := make([]string, 0, len(j.Languages))
	for _, l := range j.Languages {
		codes = append(codes, l.LanguageCode)
	}
	return codes
}

// LanguageTranslationRecord tracks one requested language of a job
type LanguageTranslationRecord struct {
	ID           int64             `json:"id" db:"id"`
	JobID        string            `json:"job_id" db:"job_id"`
	LanguageCode string            `json:"language_code" db:"language_code"`
	Status       TranslationStatus `json:"status" db:"status"`
	SrtURL       *string           `json:"srt_url,omitempty" db:"srt_url"`
	SrtContent   *string           `json:"-" db:"srt_content"`
	ErrorMessage *string           `json:"error_message,omitempty" db:"error_message"`
	RetryCount   int               `json:"retry_count" db:"retry_count"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
}

// Word type tags produced by the transcription service
const (
	WordTypeWord        = "word"
	WordTypeSpacing     = "spacing"
	WordTypePunctuation = "punctuation"
	WordTypeAudioEvent  = "audio_event"
)

// TranscriptWord is one timed token of a transcript
type TranscriptWord struct {
	Text  string  `json:"text"`
	Type  string  `json:"type"`
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
}

// SubtitleProgressUpdate is pushed to subscribers of a job; never persisted
type SubtitleProgressUpdate struct {
	JobID   string `json:"job_id"`
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// LanguageStatus is the per-language part of SubtitleProcessingStatus
type LanguageStatus struct {
	LanguageCode string            `json:"language_code"`
	LanguageName string            `json:"language_name"`
	Status       TranslationStatus `json:"status"`
	SrtURL       string            `json:"srt_url,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	RetryCount   int               `json:"retry_count"`
}

// SubtitleProcessingStatus is the read model returned for a talk's latest job
type SubtitleProcessingStatus struct {
	JobID              string           `json:"job_id"`
	ToolboxTalkID      string           `json:"toolbox_talk_id"`
	Status             JobStatus        `json:"status"`
	ErrorMessage       string           `json:"error_message,omitempty"`
	TotalLanguages     int              `json:"total_languages"`
	CompletedLanguages int              `json:"completed_languages"`
	FailedLanguages    int              `json:"failed_languages"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	Languages          []LanguageStatus `json:"languages"`
}

// ArtifactKind selects the storage folder and limits of an uploaded file
type ArtifactKind string

const (
	ArtifactSubtitles   ArtifactKind = "subtitles"
	ArtifactVideo       ArtifactKind = "video"
	ArtifactPDF         ArtifactKind = "pdf"
	ArtifactCertificate ArtifactKind = "certificate"
)

// StoredArtifact describes an object written to storage
type StoredArtifact struct {
	URL         string `json:"url"`
	StorageKey  string `json:"storage_key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}
