// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transport

import "bytes"

// progressReader reports how much of the request body has been consumed.
// It implements Len so the retrying client can set Content-Length.
type progressReader struct {
	r          *bytes.Reader
	total      int
	read       int
	last       int
	onProgress ProgressFunc
}

func newProgressReader(body []byte, onProgress ProgressFunc) *progressReader {
	return &progressReader{r: bytes.NewReader(body), total: len(body), last: -1, onProgress: onProgress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += n
	if p.onProgress != nil && p.total > 0 && n > 0 {
		pct := (p.read*100 + p.total/2) / p.total
		if pct != p.last {
			p.last = pct
			p.onProgress(pct)
		}
	}
	return n, err
}

func (p *progressReader) Len() int {
	return p.r.Len()
}
