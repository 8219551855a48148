package importer

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/Corphon/MVScenePlanner/internal/errors"
	"github.com/Corphon/MVScenePlanner/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

func TestParseDelimitedRecognisedHeader(t *testing.T) {
	content := "lyrics,start_time,description\n\"hello\",0:05,\"desc\"\n"

	res, err := Parse([]byte(content), KindDelimited)
	require.NoError(t, err)

	assert.True(t, res.Header)
	require.Len(t, res.Drafts, 1)
	assert.Equal(t, models.SceneDraft{
		StartTime:     "0:05",
		Lyrics:        "hello",
		Description:   "desc",
		ProposedOrder: 1,
	}, res.Drafts[0])
}

func TestParseDelimitedNoHeaderUsesPositions(t *testing.T) {
	res, err := Parse([]byte("A,B,C,D,E,F"), KindDelimited)
	require.NoError(t, err)

	assert.False(t, res.Header)
	require.Len(t, res.Drafts, 1)
	assert.Equal(t, models.SceneDraft{
		StartTime:       "A",
		Lyrics:          "B",
		Description:     "C",
		CameraDirection: "D",
		ImagePrompt:     "E",
		VideoPrompt:     "F",
		ProposedOrder:   1,
	}, res.Drafts[0])
}

func TestParseDelimitedSingleAliasIsData(t *testing.T) {
	res, err := Parse([]byte("lyrics,foo\n0:01,bar\n"), KindDelimited)
	require.NoError(t, err)

	assert.False(t, res.Header)
	require.Len(t, res.Drafts, 2)
	assert.Equal(t, "lyrics", res.Drafts[0].StartTime)
	assert.Equal(t, "foo", res.Drafts[0].Lyrics)
	assert.Equal(t, "bar", res.Drafts[1].Lyrics)
	assert.Equal(t, 2, res.Drafts[1].ProposedOrder)
}

func TestParseDelimitedJapaneseHeader(t *testing.T) {
	content := "開始時間,歌詞,シーン説明,カメラ/演出,英語生成プロンプト,動画生成プロンプト\n" +
		"0:10,こんにちは,夜の街,ズームイン,city at night,slow pan\n"

	res, err := Parse([]byte(content), KindDelimited)
	require.NoError(t, err)

	require.Len(t, res.Drafts, 1)
	d := res.Drafts[0]
	assert.Equal(t, "0:10", d.StartTime)
	assert.Equal(t, "こんにちは", d.Lyrics)
	assert.Equal(t, "夜の街", d.Description)
	assert.Equal(t, "ズームイン", d.CameraDirection)
	assert.Equal(t, "city at night", d.ImagePrompt)
	assert.Equal(t, "slow pan", d.VideoPrompt)
}

func TestParseDelimitedHeaderIsCaseInsensitive(t *testing.T) {
	content := "Video Prompt,LYRICS,Start Time\nrain,words,1:30\n"

	res, err := Parse([]byte(content), KindDelimited)
	require.NoError(t, err)

	require.True(t, res.Header)
	d := res.Drafts[0]
	assert.Equal(t, "words", d.Lyrics)
	assert.Equal(t, "1:30", d.StartTime)
	assert.Equal(t, "rain", d.VideoPrompt)
	// description falls back to its default column, which holds the start time here
	assert.Equal(t, "1:30", d.Description)
}

func TestParseDelimitedSkipsRowsWithWarnings(t *testing.T) {
	content := "start_time,lyrics\n" +
		"0:01,one\n" +
		"\n" +
		"solo\n" +
		"0:03,   \n" +
		",,\n" +
		",two\n"

	res, err := Parse([]byte(content), KindDelimited)
	require.NoError(t, err)

	require.Len(t, res.Drafts, 2)
	assert.Equal(t, "one", res.Drafts[0].Lyrics)
	assert.Equal(t, 1, res.Drafts[0].ProposedOrder)
	assert.Equal(t, "two", res.Drafts[1].Lyrics)
	assert.Equal(t, models.DefaultStartTime, res.Drafts[1].StartTime)
	assert.Equal(t, 2, res.Drafts[1].ProposedOrder)

	assert.Equal(t, []Warning{
		{Row: 4, Reason: "expected at least 2 columns"},
		{Row: 5, Reason: "lyrics are empty"},
	}, res.Warnings)
	assert.Equal(t, []string{"row 4: expected at least 2 columns", "row 5: lyrics are empty"}, res.WarningStrings())
}

func TestParseDelimitedQuoting(t *testing.T) {
	content := "0:01,\"hello, world\",\"line one\nline two\",\"say \"\"hi\"\"\",\"a \\\"b\\\" c\"\r\n" +
		"0:02,next\r\n"

	res, err := Parse([]byte(content), KindDelimited)
	require.NoError(t, err)

	require.Len(t, res.Drafts, 2)
	d := res.Drafts[0]
	assert.Equal(t, "hello, world", d.Lyrics)
	assert.Equal(t, "line one\nline two", d.Description)
	assert.Equal(t, `say "hi"`, d.CameraDirection)
	assert.Equal(t, `a \"b\" c`, d.ImagePrompt)
	assert.Equal(t, "next", res.Drafts[1].Lyrics)
}

func TestParseDelimitedStripsBOM(t *testing.T) {
	content := "\uFEFFlyrics,start_time\nla,0:07\n"

	res, err := Parse([]byte(content), KindDelimited)
	require.NoError(t, err)

	assert.True(t, res.Header)
	assert.Equal(t, "la", res.Drafts[0].Lyrics)
	assert.Equal(t, "0:07", res.Drafts[0].StartTime)
}

func TestParseDelimitedShiftJIS(t *testing.T) {
	sjis, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte("歌詞,開始時間\nこんにちは,0:01\n"))
	require.NoError(t, err)

	res, err := Parse(sjis, KindDelimited)
	require.NoError(t, err)

	require.Len(t, res.Drafts, 1)
	assert.Equal(t, "こんにちは", res.Drafts[0].Lyrics)
	assert.Equal(t, "0:01", res.Drafts[0].StartTime)
}

func TestParseLineText(t *testing.T) {
	res, err := Parse([]byte("first\n\nsecond"), KindLineText)
	require.NoError(t, err)

	require.Len(t, res.Drafts, 2)
	assert.Equal(t, models.SceneDraft{StartTime: "0:00", Lyrics: "first", ProposedOrder: 1}, res.Drafts[0])
	assert.Equal(t, models.SceneDraft{StartTime: "0:00", Lyrics: "second", ProposedOrder: 2}, res.Drafts[1])
	assert.Empty(t, res.Warnings)
}

func TestParseLineTextNewlineConventions(t *testing.T) {
	res, err := Parse([]byte("  a  \r\nb\rc\n   \n"), KindLineText)
	require.NoError(t, err)

	var lyrics []string
	for _, d := range res.Drafts {
		lyrics = append(lyrics, d.Lyrics)
	}
	assert.Equal(t, []string{"a", "b", "c"}, lyrics)
}

func TestParseIsDeterministic(t *testing.T) {
	content := []byte("開始時間,歌詞\n0:01,a\n0:02,b\n,\n0:03,c\n")

	first, err := Parse(content, KindDelimited)
	require.NoError(t, err)
	second, err := Parse(content, KindDelimited)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestParseEmptyImport(t *testing.T) {
	_, err := Parse([]byte("\n  \n\n"), KindLineText)
	assert.True(t, apperrors.IsEmptyImportError(err))

	_, err = Parse([]byte("start_time,lyrics\n0:01,\n"), KindDelimited)
	require.True(t, apperrors.IsEmptyImportError(err))
	appErr, _ := apperrors.As(err)
	assert.Equal(t, []string{"row 2: lyrics are empty"}, appErr.Details)

	_, err = Parse(nil, KindDelimited)
	assert.True(t, apperrors.IsEmptyImportError(err))
}

func TestParseUnknownKind(t *testing.T) {
	_, err := Parse([]byte("a"), Kind("xml"))
	assert.True(t, apperrors.IsUnsupportedFormatError(err))
}

func TestParseFile(t *testing.T) {
	p := NewParser(DefaultAliases())

	res, err := p.ParseFile("Lyrics.TXT", []byte("one\ntwo\n"))
	require.NoError(t, err)
	assert.Len(t, res.Drafts, 2)

	res, err = p.ParseFile("sheet.xlsx", []byte("0:01,csv saved as xlsx\n"))
	require.NoError(t, err)
	assert.Equal(t, "csv saved as xlsx", res.Drafts[0].Lyrics)

	_, err = p.ParseFile("notes.pdf", []byte("one"))
	assert.True(t, apperrors.IsUnsupportedFormatError(err))

	zip := append([]byte("PK\x03\x04\x14\x00\x00\x00\x08\x00"), make([]byte, 64)...)
	_, err = p.ParseFile("sheet.xlsx", zip)
	assert.True(t, apperrors.IsUnsupportedFormatError(err))
}

func TestKindForFilename(t *testing.T) {
	cases := map[string]Kind{
		"a.txt":  KindLineText,
		"a.csv":  KindDelimited,
		"a.CSV":  KindDelimited,
		"a.xlsx": KindDelimited,
		"a.xls":  KindDelimited,
	}
	for name, want := range cases {
		got, err := KindForFilename(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := KindForFilename("a")
	assert.True(t, apperrors.IsUnsupportedFormatError(err))
}

func TestSniff(t *testing.T) {
	assert.NoError(t, Sniff([]byte("BM is how this song starts\n")))
	assert.NoError(t, Sniff(nil))

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	assert.True(t, apperrors.IsUnsupportedFormatError(Sniff(png)))
}

func TestAliasFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lyrics: [\"text\"]\nstart_time: [\"time\", \"start_time\"]\n"), 0644))

	aliases, err := LoadAliasFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"start_time", "start time", "開始時間", "time"}, aliases[FieldStartTime])

	res, err := NewParser(aliases).Parse([]byte("time,text\n0:09,hey\n"), KindDelimited)
	require.NoError(t, err)
	assert.True(t, res.Header)
	assert.Equal(t, "hey", res.Drafts[0].Lyrics)
	assert.Equal(t, "0:09", res.Drafts[0].StartTime)

	// the default parser does not know these labels
	res, err = Parse([]byte("time,text\n0:09,hey\n"), KindDelimited)
	require.NoError(t, err)
	assert.False(t, res.Header)
}

func TestAliasFileUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chorus: [\"x\"]\n"), 0644))

	_, err := LoadAliasFile(path)
	assert.ErrorContains(t, err, "unknown field")

	_, err = LoadAliasFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
