// Package dataset loads clique membership: which tracks are covers of the
// same work. It yields the aligned track-id / clique-id universe every later
// stage indexes into.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// NoClique marks a track that belongs to no known clique. Such tracks are
// never queries but stay in the corpus as distractors.
const NoClique int32 = -1

// ErrMisaligned is returned when track and clique arrays differ in length.
var ErrMisaligned = errors.New("dataset: track and clique ids are misaligned")

// Universe is the fixed ordering of tracks processed by a run.
// TrackIDs[i] and CliqueIDs[i] always describe the same track.
type Universe struct {
	TrackIDs  []string
	CliqueIDs []int32
}

// Len returns the number of tracks.
func (u Universe) Len() int { return len(u.TrackIDs) }

// Validate checks the alignment invariant.
func (u Universe) Validate() error {
	if len(u.TrackIDs) != len(u.CliqueIDs) {
		return fmt.Errorf("%w: %d tracks, %d clique ids", ErrMisaligned, len(u.TrackIDs), len(u.CliqueIDs))
	}
	return nil
}

// Slice returns the half-open range [start, end) clamped to the universe.
// The returned slices share storage with u and must not be mutated.
func (u Universe) Slice(start, end int) Universe {
	start = max(0, min(start, u.Len()))
	end = max(start, min(end, u.Len()))
	return Universe{
		TrackIDs:  u.TrackIDs[start:end],
		CliqueIDs: u.CliqueIDs[start:end],
	}
}

// Queries counts tracks with a known clique.
func (u Universe) Queries() int {
	n := 0
	for _, c := range u.CliqueIDs {
		if c != NoClique {
			n++
		}
	}
	return n
}

// Clique is one work and the tracks believed to perform it.
type Clique struct {
	ID      int32
	WorkIDs []string
	Title   string
	Tracks  []string
}

// Cliques is an ordered clique list as read from an SHS file.
type Cliques []Clique

// Tracks returns the number of member tracks over all cliques.
func (c Cliques) Tracks() int {
	n := 0
	for _, cl := range c {
		n += len(cl.Tracks)
	}
	return n
}

const shsSep = "<SEP>"

// ReadSHS parses the SecondHandSongs text format:
//
//	# comment
//	%work_id[,work_id...],title
//	TRACKID<SEP>ARTISTID<SEP>PERFORMANCE
//
// Cliques receive sequential IDs in file order. The second return value lists
// all member tracks in file order.
func ReadSHS(r io.Reader) (Cliques, []string, error) {
	var (
		cliques Cliques
		tracks  []string
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		switch {
		case text == "" || strings.HasPrefix(text, "#"):
			continue
		case strings.HasPrefix(text, "%"):
			header := strings.TrimPrefix(text, "%")
			var works []string
			title := ""
			parts := strings.Split(header, ",")
			for i, p := range parts {
				if _, err := strconv.Atoi(p); err != nil {
					title = strings.Join(parts[i:], ",")
					break
				}
				works = append(works, p)
			}
			cliques = append(cliques, Clique{
				ID:      int32(len(cliques)),
				WorkIDs: works,
				Title:   title,
			})
		default:
			if len(cliques) == 0 {
				return nil, nil, fmt.Errorf("dataset: line %d: track before first clique header", line)
			}
			tid, _, _ := strings.Cut(text, shsSep)
			if tid == "" {
				return nil, nil, fmt.Errorf("dataset: line %d: empty track id", line)
			}
			last := &cliques[len(cliques)-1]
			last.Tracks = append(last.Tracks, tid)
			tracks = append(tracks, tid)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return cliques, tracks, nil
}

// ReadSHSFile opens path and parses it with ReadSHS.
func ReadSHSFile(path string) (Cliques, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadSHS(f)
}

// FromCliques builds a universe from clique members followed by distractor
// tracks with NoClique. A distractor that is also a clique member keeps its
// clique and is not duplicated.
func FromCliques(cliques Cliques, distractors []string) Universe {
	u := Universe{}
	seen := make(map[string]struct{}, cliques.Tracks()+len(distractors))
	for _, cl := range cliques {
		for _, tid := range cl.Tracks {
			if _, ok := seen[tid]; ok {
				continue
			}
			seen[tid] = struct{}{}
			u.TrackIDs = append(u.TrackIDs, tid)
			u.CliqueIDs = append(u.CliqueIDs, cl.ID)
		}
	}
	for _, tid := range distractors {
		if _, ok := seen[tid]; ok {
			continue
		}
		seen[tid] = struct{}{}
		u.TrackIDs = append(u.TrackIDs, tid)
		u.CliqueIDs = append(u.CliqueIDs, NoClique)
	}
	return u
}

// ReadUniverse reads `track_id<TAB>clique_id` lines. Blank lines and lines
// starting with '#' are ignored.
func ReadUniverse(r io.Reader) (Universe, error) {
	u := Universe{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		tid, cid, ok := strings.Cut(text, "\t")
		if !ok {
			return Universe{}, fmt.Errorf("dataset: line %d: expected track_id<TAB>clique_id", line)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(cid), 10, 32)
		if err != nil {
			return Universe{}, fmt.Errorf("dataset: line %d: %w", line, err)
		}
		u.TrackIDs = append(u.TrackIDs, strings.TrimSpace(tid))
		u.CliqueIDs = append(u.CliqueIDs, int32(id))
	}
	if err := sc.Err(); err != nil {
		return Universe{}, err
	}
	return u, nil
}

// ReadUniverseFile opens path and parses it with ReadUniverse.
func ReadUniverseFile(path string) (Universe, error) {
	f, err := os.Open(path)
	if err != nil {
		return Universe{}, err
	}
	defer f.Close()
	return ReadUniverse(f)
}

// WriteUniverse writes u in the format read by ReadUniverse.
func WriteUniverse(w io.Writer, u Universe) error {
	if err := u.Validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	for i, tid := range u.TrackIDs {
		if _, err := fmt.Fprintf(bw, "%s\t%d\n", tid, u.CliqueIDs[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
