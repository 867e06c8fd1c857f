// Package ambience loads the fixed library of looping background sound beds
// from disk: each file yields an array of samples with a name and id.
// Decoding uses github.com/go-audio/wav.
package ambience

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
)

// attenuation is applied to every loaded sample so ambience beds sit under
// participant speech.
const attenuation = 0.5

// Ambience is a process-lifetime immutable named sample buffer.
type Ambience struct {
	ID      string
	Name    string
	Samples []float32
}

// LoadDir reads every `<id>_<name>.<ext>` file in dir into an Ambience.
// Files that don't match the naming convention are skipped with a log line;
// a directory read failure is returned to the caller.
func LoadDir(dir string) ([]*Ambience, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ambience: read dir %s: %w", dir, err)
	}

	var result []*Ambience
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, name, ok := splitFilename(entry.Name())
		if !ok {
			log.Printf("[ambience] skipping %s: does not match <id>_<name>.<ext>", entry.Name())
			continue
		}
		samples, err := readSound(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Printf("[ambience] failed to read %s: %v", entry.Name(), err)
			continue
		}
		a := &Ambience{ID: id, Name: name, Samples: samples}
		log.Printf("[ambience] loaded id=%s name=%s length=%d", a.ID, a.Name, len(a.Samples))
		result = append(result, a)
	}
	return result, nil
}

// splitFilename splits "<id>_<name>.<ext>" into id and name, taking the
// display name up to the *last* dot (a filename may legitimately contain
// more than one dot before its extension).
func splitFilename(filename string) (id, name string, ok bool) {
	underscore := strings.Index(filename, "_")
	if underscore < 0 {
		return "", "", false
	}
	id = filename[:underscore]
	rest := filename[underscore+1:]
	if dot := strings.LastIndex(rest, "."); dot >= 0 {
		name = rest[:dot]
	} else {
		name = rest
	}
	return id, name, true
}

func readSound(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) * attenuation / 32768.0
	}
	return samples, nil
}
