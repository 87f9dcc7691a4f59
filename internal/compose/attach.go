package compose

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mattt/mailbridge/internal/mailstore"
)

// AttachmentResult reports how many attachments were staged and which
// requested paths could not be.
type AttachmentResult struct {
	Added  int      `json:"added"`
	Failed []string `json:"failed"`
}

// Summary describes the result in one sentence.
func (r AttachmentResult) Summary() string {
	if len(r.Failed) == 0 {
		return fmt.Sprintf("%d attachment(s) added", r.Added)
	}
	return fmt.Sprintf("%d attachment(s) added, failed to attach: %s", r.Added, strings.Join(r.Failed, ", "))
}

// StageFiles turns local file paths into attachment references. Paths that
// do not name a readable regular file are recorded as failed; staging always
// continues with the next path.
func StageFiles(paths []string) ([]mailstore.Attachment, AttachmentResult) {
	result := AttachmentResult{Failed: []string{}}
	var staged []mailstore.Attachment

	for _, path := range paths {
		att, err := stageFile(path)
		if err != nil {
			result.Failed = append(result.Failed, path)
			continue
		}
		staged = append(staged, att)
		result.Added++
	}

	return staged, result
}

func stageFile(path string) (mailstore.Attachment, error) {
	abs, err := filepath.Abs(strings.TrimPrefix(path, "file://"))
	if err != nil {
		return mailstore.Attachment{}, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return mailstore.Attachment{}, err
	}
	if !info.Mode().IsRegular() {
		return mailstore.Attachment{}, fmt.Errorf("%s is not a regular file", path)
	}

	mtype, err := mimetype.DetectFile(abs)
	if err != nil {
		return mailstore.Attachment{}, err
	}

	return mailstore.Attachment{
		Name:        filepath.Base(abs),
		ContentType: mtype.String(),
		URL:         (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(),
		Size:        info.Size(),
	}, nil
}
