package domain

import "io"

// Audio is a recorded voice command. The caller owns Content and closes it;
// transcribers read it once and do not keep a reference.
type Audio struct {
	Filename    string
	ContentType string
	Content     io.Reader
}
