package subtitle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/Taichi-iskw/talk-subtitles/internal/errors"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/storage"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/translation"
)

// memJobs is an in-memory subtitle repository. Every write advances a fake clock by one second.
type memJobs struct {
	mu     sync.Mutex
	jobs   map[string]*model.SubtitleJob
	order  []string
	nextID int64
	now    time.Time

	// languageFault, when set, can reject a language write before it is stored
	languageFault func(*model.LanguageTranslationRecord) error
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[string]*model.SubtitleJob{}, now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (m *memJobs) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func copyRecord(r *model.LanguageTranslationRecord) *model.LanguageTranslationRecord {
	c := *r
	return &c
}

func copyJob(j *model.SubtitleJob) *model.SubtitleJob {
	c := *j
	c.Languages = make([]*model.LanguageTranslationRecord, len(j.Languages))
	for i, r := range j.Languages {
		c.Languages[i] = copyRecord(r)
	}
	return &c
}

func notFound() error { return apperrors.New(apperrors.CodeNotFound, "subtitle job not found") }

func (m *memJobs) CreateJob(_ context.Context, job *model.SubtitleJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	job.CreatedAt, job.UpdatedAt = now, now
	for _, r := range job.Languages {
		m.nextID++
		r.ID = m.nextID
		r.JobID = job.ID
		r.UpdatedAt = now
	}
	m.jobs[job.ID] = copyJob(job)
	m.order = append(m.order, job.ID)
	return nil
}

func (m *memJobs) GetJob(_ context.Context, id string) (*model.SubtitleJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, notFound()
	}
	return copyJob(j), nil
}

func (m *memJobs) latest(talkID string, match func(*model.SubtitleJob) bool) *model.SubtitleJob {
	for i := len(m.order) - 1; i >= 0; i-- {
		j := m.jobs[m.order[i]]
		if j.ToolboxTalkID == talkID && match(j) {
			return j
		}
	}
	return nil
}

func (m *memJobs) GetLatestJobForTalk(_ context.Context, talkID string) (*model.SubtitleJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.latest(talkID, func(*model.SubtitleJob) bool { return true })
	if j == nil {
		return nil, notFound()
	}
	return copyJob(j), nil
}

func (m *memJobs) GetLatestCompletedJobWithSource(_ context.Context, talkID string) (*model.SubtitleJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.latest(talkID, func(j *model.SubtitleJob) bool {
		en := j.Language(model.EnglishCode)
		return j.Status == model.JobStatusCompleted && en != nil &&
			en.Status == model.TranslationStatusCompleted && en.SrtContent != nil && *en.SrtContent != ""
	})
	if j == nil {
		return nil, notFound()
	}
	return copyJob(j), nil
}

func (m *memJobs) ListJobsByTalk(_ context.Context, talkID string, limit, offset int) ([]*model.SubtitleJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SubtitleJob
	for i := len(m.order) - 1; i >= 0; i-- {
		j := m.jobs[m.order[i]]
		if j.ToolboxTalkID == talkID {
			c := copyJob(j)
			c.Languages = nil
			out = append(out, c)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memJobs) GetJobStatus(_ context.Context, id string) (model.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return "", notFound()
	}
	return j.Status, nil
}

func (m *memJobs) UpdateJobStatus(_ context.Context, id string, status model.JobStatus, errorMessage *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status == model.JobStatusCancelled {
		return false, nil
	}
	j.Status = status
	j.ErrorMessage = errorMessage
	j.UpdatedAt = m.tick()
	return true, nil
}

func (m *memJobs) CancelJob(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status.IsTerminal() {
		return false, nil
	}
	j.Status = model.JobStatusCancelled
	j.UpdatedAt = m.tick()
	return true, nil
}

func (m *memJobs) EnsureLanguage(_ context.Context, jobID, code string) (*model.LanguageTranslationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, apperrors.New(apperrors.CodeDependency, "referenced subtitle job does not exist")
	}
	if r := j.Language(code); r != nil {
		return copyRecord(r), nil
	}
	m.nextID++
	r := &model.LanguageTranslationRecord{
		ID: m.nextID, JobID: jobID, LanguageCode: code,
		Status: model.TranslationStatusPending, UpdatedAt: m.tick(),
	}
	j.Languages = append(j.Languages, r)
	return copyRecord(r), nil
}

func (m *memJobs) UpdateLanguage(_ context.Context, record *model.LanguageTranslationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.languageFault != nil {
		if err := m.languageFault(record); err != nil {
			return err
		}
	}
	j, ok := m.jobs[record.JobID]
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, "language record not found")
	}
	for i, r := range j.Languages {
		if r.ID == record.ID {
			record.UpdatedAt = m.tick()
			j.Languages[i] = copyRecord(record)
			return nil
		}
	}
	return apperrors.New(apperrors.CodeNotFound, "language record not found")
}

// failLanguageWriteOnce rejects the first write of code with the given status
func (m *memJobs) failLanguageWriteOnce(code string, status model.TranslationStatus) {
	fired := false
	m.languageFault = func(r *model.LanguageTranslationRecord) error {
		if fired || r.LanguageCode != code || r.Status != status {
			return nil
		}
		fired = true
		return apperrors.New(apperrors.CodeTransport, "connection reset by peer")
	}
}

// memTalks is an in-memory talk repository
type memTalks struct {
	talks map[string]*model.ToolboxTalk
}

func (m *memTalks) Create(_ context.Context, t *model.ToolboxTalk) error {
	m.talks[t.ID] = t
	return nil
}

func (m *memTalks) GetByID(_ context.Context, id string) (*model.ToolboxTalk, error) {
	t, ok := m.talks[id]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "toolbox talk not found")
	}
	return t, nil
}

func (m *memTalks) Delete(_ context.Context, id string) error {
	delete(m.talks, id)
	return nil
}

// fakeResolver returns the source URL unless err is set
type fakeResolver struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeResolver) ResolvePlayableURL(_ context.Context, sourceURL string, _ model.SourceType) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return sourceURL + "?signed=1", nil
}

// fakeTranscriber returns words or err and counts calls
type fakeTranscriber struct {
	mu      sync.Mutex
	words   []model.TranscriptWord
	err     error
	calls   int
	lastURL string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, videoURL string) ([]model.TranscriptWord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastURL = videoURL
	if f.err != nil {
		return nil, f.err
	}
	return f.words, nil
}

func (f *fakeTranscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeTranslator translates SRT by tagging it with the language; failures are per language name
type fakeTranslator struct {
	mu     sync.Mutex
	fail   map[string]error
	before func(language string)
	calls  []string
}

func (f *fakeTranslator) TranslateText(context.Context, string, string, bool, string) (string, error) {
	return "", fmt.Errorf("not used")
}

func (f *fakeTranslator) TranslateBatch(context.Context, []translation.BatchItem, string, string) (map[string]translation.ItemResult, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeTranslator) SendCustomPrompt(context.Context, string) (string, error) {
	return "", fmt.Errorf("not used")
}

func (f *fakeTranslator) TranslateSubtitles(_ context.Context, srtContent, targetLanguage string) (string, error) {
	if f.before != nil {
		f.before(targetLanguage)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, targetLanguage)
	if err := f.fail[targetLanguage]; err != nil {
		return "", err
	}
	return "[" + targetLanguage + "]\n" + srtContent, nil
}

func (f *fakeTranslator) setFailure(language string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, language)
		return
	}
	f.fail[language] = err
}

func (f *fakeTranslator) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeStorage records uploads
type fakeStorage struct {
	mu      sync.Mutex
	uploads map[string][]byte
	failFor string // language code whose upload fails
}

func (f *fakeStorage) UploadArtifact(_ context.Context, tenantID, talkID string, kind model.ArtifactKind, content []byte, meta storage.ArtifactMetadata) (*model.StoredArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != "" && meta.LanguageCode == f.failFor {
		return nil, apperrors.New(apperrors.CodeTransport, "upload failed")
	}
	key, err := storage.BuildKey(tenantID, talkID, kind, meta.Title, meta.LanguageCode)
	if err != nil {
		return nil, err
	}
	f.uploads[key] = content
	return &model.StoredArtifact{URL: "https://files.test/" + key, StorageKey: key, Size: int64(len(content))}, nil
}

func (f *fakeStorage) Download(_ context.Context, _, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.uploads[key]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "artifact not found")
	}
	return data, nil
}

func (f *fakeStorage) DeleteArtifactsForTalk(context.Context, string, string) (int, error) {
	return 0, nil
}

func (f *fakeStorage) PublicURL(key string) string { return "https://files.test/" + key }

func (f *fakeStorage) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.uploads {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// recordingNotifier keeps every update and can be told to fail
type recordingNotifier struct {
	mu      sync.Mutex
	updates []model.SubtitleProgressUpdate
	err     error
}

func (r *recordingNotifier) Publish(_ context.Context, u model.SubtitleProgressUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
	return r.err
}

func (r *recordingNotifier) all() []model.SubtitleProgressUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.SubtitleProgressUpdate(nil), r.updates...)
}

// recordingDispatcher keeps enqueued tasks
type recordingDispatcher struct {
	tasks []string
	err   error
}

func (d *recordingDispatcher) Enqueue(_ context.Context, kind TaskKind, jobID string) error {
	if d.err != nil {
		return d.err
	}
	d.tasks = append(d.tasks, string(kind)+":"+jobID)
	return nil
}
