package tags

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"

	"vid2audio/domain/conversion"
)

// Fields is the fixed set of tags carried from a source video to its audio file
type Fields struct {
	Title      string
	Artist     string
	Album      string
	Year       int
	Genre      string
	Track      int
	TrackTotal int
}

// IsEmpty returns true when no field is set
func (f Fields) IsEmpty() bool {
	return f == Fields{}
}

// ReadFields reads tags from any container dhowden/tag understands (MP4, MP3, FLAC, OGG).
// A file without tags yields empty Fields and no error.
func ReadFields(path string) (Fields, error) {
	file, err := os.Open(path)
	if err != nil {
		return Fields{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	m, err := tag.ReadFrom(file)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return Fields{}, nil
	}
	if err != nil {
		return Fields{}, fmt.Errorf("failed to read tags from %s: %w", path, err)
	}

	track, total := m.Track()
	return Fields{
		Title:      m.Title(),
		Artist:     m.Artist(),
		Album:      m.Album(),
		Year:       m.Year(),
		Genre:      m.Genre(),
		Track:      track,
		TrackTotal: total,
	}, nil
}

// Tagger implements conversion.Tagger for MP3 files with ID3v2.4 tags
type Tagger struct{}

// NewTagger creates a new ID3 tagger
func NewTagger() *Tagger {
	return &Tagger{}
}

// CopyTags copies the known fields of sourcePath into the ID3 tag of destPath.
// Fields missing from the source leave the destination's values untouched.
func (t *Tagger) CopyTags(sourcePath, destPath string) error {
	fields, err := ReadFields(sourcePath)
	if err != nil {
		return err
	}
	if fields.IsEmpty() {
		return nil
	}
	return t.WriteFields(destPath, fields)
}

// WriteFields stores fields in the ID3 tag of path
func (t *Tagger) WriteFields(path string, fields Fields) error {
	id3, err := openID3(path)
	if err != nil {
		return err
	}
	defer id3.Close()

	if fields.Title != "" {
		id3.SetTitle(fields.Title)
	}
	if fields.Artist != "" {
		id3.SetArtist(fields.Artist)
	}
	if fields.Album != "" {
		id3.SetAlbum(fields.Album)
	}
	if fields.Year > 0 {
		id3.SetYear(strconv.Itoa(fields.Year))
	}
	if fields.Genre != "" {
		id3.SetGenre(fields.Genre)
	}
	if fields.Track > 0 {
		track := strconv.Itoa(fields.Track)
		if fields.TrackTotal > 0 {
			track += "/" + strconv.Itoa(fields.TrackTotal)
		}
		id3.AddTextFrame(id3.CommonID("Track number/Position in set"), id3.DefaultEncoding(), track)
	}

	if err := id3.Save(); err != nil {
		return fmt.Errorf("failed to save tags to %s: %w", path, err)
	}
	return nil
}

// EmbedCover replaces the front cover of destPath with art
func (t *Tagger) EmbedCover(destPath string, art conversion.Artwork) error {
	if len(art.Data) == 0 {
		return errors.New("cover image is empty")
	}

	id3, err := openID3(destPath)
	if err != nil {
		return err
	}
	defer id3.Close()

	id3.DeleteFrames(id3.CommonID("Attached picture"))
	id3.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3.DefaultEncoding(),
		MimeType:    art.MimeType,
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     art.Data,
	})

	if err := id3.Save(); err != nil {
		return fmt.Errorf("failed to save cover to %s: %w", destPath, err)
	}
	return nil
}

// openID3 opens path for tag editing as ID3v2.4 with UTF-8 text. id3v2 writes UTF-16
// strings with an odd byte count, so frames parsed as UTF-16 are re-encoded too.
func openID3(path string) (*id3v2.Tag, error) {
	id3, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open tags of %s: %w", path, err)
	}
	id3.SetVersion(4)
	id3.SetDefaultEncoding(id3v2.EncodingUTF8)
	reencodeUTF16(id3)
	return id3, nil
}

func reencodeUTF16(id3 *id3v2.Tag) {
	for id, frames := range id3.AllFrames() {
		changed := false
		for i, f := range frames {
			if re, ok := asUTF8(f); ok {
				frames[i] = re
				changed = true
			}
		}
		if !changed {
			continue
		}
		id3.DeleteFrames(id)
		for _, f := range frames {
			id3.AddFrame(id, f)
		}
	}
}

// asUTF8 returns f with UTF-8 text when f carries UTF-16 text
func asUTF8(f id3v2.Framer) (id3v2.Framer, bool) {
	utf16 := func(e id3v2.Encoding) bool {
		return e.Equals(id3v2.EncodingUTF16) || e.Equals(id3v2.EncodingUTF16BE)
	}
	switch fr := f.(type) {
	case id3v2.TextFrame:
		if utf16(fr.Encoding) {
			fr.Encoding = id3v2.EncodingUTF8
			return fr, true
		}
	case id3v2.CommentFrame:
		if utf16(fr.Encoding) {
			fr.Encoding = id3v2.EncodingUTF8
			return fr, true
		}
	case id3v2.UserDefinedTextFrame:
		if utf16(fr.Encoding) {
			fr.Encoding = id3v2.EncodingUTF8
			return fr, true
		}
	case id3v2.PictureFrame:
		if utf16(fr.Encoding) {
			fr.Encoding = id3v2.EncodingUTF8
			return fr, true
		}
	}
	return f, false
}

// Ensure Tagger implements conversion.Tagger
var _ conversion.Tagger = (*Tagger)(nil)
