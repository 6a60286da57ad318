package dicom

import (
	"io"
	"sync"
	"time"
)

// receiveShare is the part of the bar spent on the browser to console
// hop. The backend hop fills the rest.
const receiveShare = 50

// Progress is one upload's state as the browser polls it.
type Progress struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage,omitempty"`
	Sent    int64  `json:"sent"`
	Total   int64  `json:"total"`
	Done    bool   `json:"done"`
	Error   string `json:"error,omitempty"`

	updated time.Time
}

// Upload stages as shown next to the bar.
const (
	StageReceiving = "recibiendo"
	StageSending   = "enviando"
)

// TrackKey scopes an upload id to the session that started it, so one
// user cannot poll another's upload.
func TrackKey(sessionID, uploadID string) string {
	return sessionID + "/" + uploadID
}

// Tracker holds upload progress keyed by TrackKey. Finished entries are
// dropped once they are older than keep.
type Tracker struct {
	mu      sync.Mutex
	uploads map[string]*Progress
	keep    time.Duration
	now     func() time.Time
}

func NewTracker(keep time.Duration) *Tracker {
	return &Tracker{uploads: make(map[string]*Progress), keep: keep, now: time.Now}
}

// Start registers id at 0%. An upload already running under id is kept.
func (t *Tracker) Start(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune()
	if p, ok := t.uploads[id]; ok && !p.Done {
		return
	}
	t.uploads[id] = &Progress{Stage: StageReceiving, updated: t.now()}
}

// Receive records bytes read from the browser. It fills the first
// receiveShare percent of the bar.
func (t *Tracker) Receive(id string, read, total int64) {
	t.advance(id, StageReceiving, read, total, 0, receiveShare)
}

// Report records bytes sent to the backend. It fills the bar from
// receiveShare to 100. The percentage never moves backwards.
func (t *Tracker) Report(id string, sent, total int64) {
	t.advance(id, StageSending, sent, total, receiveShare, 100-receiveShare)
}

func (t *Tracker) advance(id, stage string, n, total int64, base, span int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.uploads[id]
	if !ok || p.Done {
		return
	}
	pct := base
	if total > 0 {
		pct += int(min(n, total) * int64(span) / total)
	}
	if pct > p.Percent {
		p.Percent = pct
	}
	p.Stage = stage
	p.Sent, p.Total = n, total
	p.updated = t.now()
}

// Finish marks id done. A nil err completes it at 100%.
func (t *Tracker) Finish(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.uploads[id]
	if !ok {
		return
	}
	p.Done = true
	if err != nil {
		p.Error = err.Error()
	} else {
		p.Percent = 100
	}
	p.updated = t.now()
}

// Get returns a copy of id's progress.
func (t *Tracker) Get(id string) (Progress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.uploads[id]
	if !ok {
		return Progress{}, false
	}
	return *p, true
}

func (t *Tracker) prune() {
	cutoff := t.now().Add(-t.keep)
	for id, p := range t.uploads {
		if p.Done && p.updated.Before(cutoff) {
			delete(t.uploads, id)
		}
	}
}

// receiveBody counts request body bytes into the tracker as the
// multipart parser consumes them.
type receiveBody struct {
	io.ReadCloser
	tracker *Tracker
	id      string
	total   int64
	read    int64
}

func (b *receiveBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		b.read += int64(n)
		b.tracker.Receive(b.id, b.read, b.total)
	}
	return n, err
}
