package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shsFixture = `# SecondHandSongs test set
# format: %clique, TRACKID<SEP>ARTISTID<SEP>PERFORMANCE
%-1,11928,Bring It On Home
TRAAAAA128F4200001<SEP>AR00001<SEP>-1
TRAAAAB128F4200002<SEP>AR00002<SEP>11928
%13,Summertime, Live
TRAAAAC128F4200003<SEP>AR00003<SEP>13
TRAAAAD128F4200004<SEP>AR00004<SEP>14
TRAAAAE128F4200005<SEP>AR00005<SEP>15
`

func TestReadSHS(t *testing.T) {
	cliques, tracks, err := ReadSHS(strings.NewReader(shsFixture))
	require.NoError(t, err)

	require.Len(t, cliques, 2)
	assert.Equal(t, int32(0), cliques[0].ID)
	assert.Equal(t, []string{"-1", "11928"}, cliques[0].WorkIDs)
	assert.Equal(t, "Bring It On Home", cliques[0].Title)
	assert.Equal(t, []string{"TRAAAAA128F4200001", "TRAAAAB128F4200002"}, cliques[0].Tracks)

	assert.Equal(t, int32(1), cliques[1].ID)
	assert.Equal(t, "Summertime, Live", cliques[1].Title)
	assert.Len(t, cliques[1].Tracks, 3)

	assert.Len(t, tracks, 5)
	assert.Equal(t, 5, cliques.Tracks())
}

func TestReadSHS_TrackBeforeHeader(t *testing.T) {
	_, _, err := ReadSHS(strings.NewReader("TRAAAAA128F4200001<SEP>AR<SEP>1\n"))
	assert.Error(t, err)
}

func TestFromCliques(t *testing.T) {
	cliques, _, err := ReadSHS(strings.NewReader(shsFixture))
	require.NoError(t, err)

	u := FromCliques(cliques, []string{"TRDISTRACTOR00001", "TRAAAAC128F4200003"})
	require.NoError(t, u.Validate())

	assert.Equal(t, 6, u.Len())
	assert.Equal(t, []int32{0, 0, 1, 1, 1, NoClique}, u.CliqueIDs)
	assert.Equal(t, "TRDISTRACTOR00001", u.TrackIDs[5])
	assert.Equal(t, 5, u.Queries())
}

func TestUniverse_Slice(t *testing.T) {
	u := Universe{
		TrackIDs:  []string{"a", "b", "c"},
		CliqueIDs: []int32{1, NoClique, 1},
	}

	s := u.Slice(1, 10)
	assert.Equal(t, []string{"b", "c"}, s.TrackIDs)
	assert.Equal(t, []int32{NoClique, 1}, s.CliqueIDs)

	assert.Equal(t, 0, u.Slice(5, 10).Len())
	assert.Equal(t, 0, u.Slice(2, 1).Len())
}

func TestUniverse_Validate(t *testing.T) {
	u := Universe{TrackIDs: []string{"a"}, CliqueIDs: nil}
	assert.ErrorIs(t, u.Validate(), ErrMisaligned)
}

func TestUniverse_RoundTrip(t *testing.T) {
	u := Universe{
		TrackIDs:  []string{"TRA", "TRB", "TRC"},
		CliqueIDs: []int32{3, NoClique, 3},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteUniverse(&buf, u))

	got, err := ReadUniverse(&buf)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestReadUniverse_Malformed(t *testing.T) {
	_, err := ReadUniverse(strings.NewReader("TRA 3\n"))
	assert.Error(t, err)

	_, err = ReadUniverse(strings.NewReader("TRA\tx\n"))
	assert.Error(t, err)
}
