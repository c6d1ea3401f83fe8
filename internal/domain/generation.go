package domain

// GenerationRequest is one composition attempt. RequestID is strictly
// increasing per workflow; only the latest request may commit.
type GenerationRequest struct {
	RequestID  uint64
	Avatar     NormalizedAvatar
	Decoration Decoration
}

// Artifact is the final encoded image.
type Artifact struct {
	Data     []byte
	MIME     string
	Animated bool
	Width    int
	Height   int
	Frames   int
}

// Size returns the encoded length in bytes.
func (a *Artifact) Size() int64 {
	if a == nil {
		return 0
	}
	return int64(len(a.Data))
}

// Extension returns the file extension matching the artifact container.
func (a *Artifact) Extension() string {
	if a != nil && a.MIME == "image/gif" {
		return "gif"
	}
	return "png"
}

// GenerationResult is either a success carrying an artifact or a failure
// carrying a reason. Exactly one of Artifact and Err is set.
type GenerationResult struct {
	Artifact *Artifact
	Err      error
}

// Success builds a successful result.
func Success(a *Artifact) GenerationResult {
	return GenerationResult{Artifact: a}
}

// Failure builds a failed result.
func Failure(err error) GenerationResult {
	return GenerationResult{Err: err}
}

// OK reports whether the result carries an artifact.
func (r GenerationResult) OK() bool {
	return r.Err == nil && r.Artifact != nil && len(r.Artifact.Data) > 0
}
