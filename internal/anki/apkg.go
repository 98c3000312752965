package anki

import (
	"archive/zip"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"codeberg.org/snonux/ordkort/internal"
	"codeberg.org/snonux/ordkort/internal/card"
)

// fieldSep joins note fields in the Anki schema.
const fieldSep = "\x1f"

// Exporter writes finished records into a standalone .apkg package so the
// deck can be imported on a machine without AnkiConnect.
type Exporter struct {
	deckName string
	audioDir string
	deckID   int64
	modelID  int64

	mediaFiles map[string]int // note filename -> media number
}

// NewExporter creates an .apkg exporter for the given deck.
func NewExporter(deckName, audioDir string) *Exporter {
	// Timestamp-derived IDs keep repeated exports distinct in Anki.
	now := time.Now().UnixMilli()
	return &Exporter{
		deckName:   deckName,
		audioDir:   audioDir,
		deckID:     now,
		modelID:    now + 1,
		mediaFiles: make(map[string]int),
	}
}

// Export writes the records to outputPath as an .apkg file. Failed records
// are skipped.
func (e *Exporter) Export(records []*card.Record, outputPath string) error {
	tempDir, err := os.MkdirTemp("", "ordkort_apkg_*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	// Media first so the note fields can reference what actually exists.
	if err := e.stageMedia(records, tempDir); err != nil {
		return fmt.Errorf("failed to stage media: %w", err)
	}
	if err := e.writeMediaMapping(tempDir); err != nil {
		return fmt.Errorf("failed to write media mapping: %w", err)
	}

	dbPath := filepath.Join(tempDir, "collection.anki2")
	if err := e.writeDatabase(dbPath, records); err != nil {
		return fmt.Errorf("failed to build collection database: %w", err)
	}

	if err := zipDirectory(tempDir, outputPath); err != nil {
		return fmt.Errorf("failed to package .apkg: %w", err)
	}
	return nil
}

// stageMedia copies each record's audio into the package under its media
// number. Missing files are skipped so the export still succeeds.
func (e *Exporter) stageMedia(records []*card.Record, tempDir string) error {
	counter := 0
	for _, rec := range records {
		if rec.Failed() {
			continue
		}
		for _, filename := range []string{rec.WordAudio, rec.SentenceAudio} {
			if filename == "" {
				continue
			}
			if _, exists := e.mediaFiles[filename]; exists {
				continue
			}
			source, ok := internal.ResolveArtifact(filepath.Join(e.audioDir, filename))
			if !ok {
				continue
			}
			target := filepath.Join(tempDir, fmt.Sprintf("%d", counter))
			if err := internal.CopyFile(source, target); err != nil {
				return fmt.Errorf("failed to copy %s: %w", filename, err)
			}
			e.mediaFiles[filename] = counter
			counter++
		}
	}
	return nil
}

func (e *Exporter) writeMediaMapping(tempDir string) error {
	mapping := make(map[string]string, len(e.mediaFiles))
	for filename, num := range e.mediaFiles {
		mapping[fmt.Sprintf("%d", num)] = filename
	}
	data, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(tempDir, "media"), data, 0644)
}

func (e *Exporter) soundField(filename string) string {
	if filename == "" {
		return ""
	}
	if _, ok := e.mediaFiles[filename]; !ok {
		return ""
	}
	return fmt.Sprintf("[sound:%s]", filename)
}

func (e *Exporter) writeDatabase(dbPath string, records []*card.Record) error {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := createSchema(db); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := e.insertCollection(db); err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}
	if err := e.insertRecords(db, records); err != nil {
		return err
	}
	return nil
}

func createSchema(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE col (
			id integer PRIMARY KEY,
			crt integer NOT NULL,
			mod integer NOT NULL,
			scm integer NOT NULL,
			ver integer NOT NULL,
			dty integer NOT NULL,
			usn integer NOT NULL,
			ls integer NOT NULL,
			conf text NOT NULL,
			models text NOT NULL,
			decks text NOT NULL,
			dconf text NOT NULL,
			tags text NOT NULL
		)`,
		`CREATE TABLE notes (
			id integer PRIMARY KEY,
			guid text NOT NULL,
			mid integer NOT NULL,
			mod integer NOT NULL,
			usn integer NOT NULL,
			tags text NOT NULL,
			flds text NOT NULL,
			sfld text NOT NULL,
			csum integer NOT NULL,
			flags integer NOT NULL,
			data text NOT NULL
		)`,
		`CREATE TABLE cards (
			id integer PRIMARY KEY,
			nid integer NOT NULL,
			did integer NOT NULL,
			ord integer NOT NULL,
			mod integer NOT NULL,
			usn integer NOT NULL,
			type integer NOT NULL,
			queue integer NOT NULL,
			due integer NOT NULL,
			ivl integer NOT NULL,
			factor integer NOT NULL,
			reps integer NOT NULL,
			lapses integer NOT NULL,
			left integer NOT NULL,
			odue integer NOT NULL,
			odid integer NOT NULL,
			flags integer NOT NULL,
			data text NOT NULL
		)`,
		`CREATE TABLE revlog (
			id integer PRIMARY KEY,
			cid integer NOT NULL,
			usn integer NOT NULL,
			ease integer NOT NULL,
			ivl integer NOT NULL,
			lastIvl integer NOT NULL,
			factor integer NOT NULL,
			time integer NOT NULL,
			type integer NOT NULL
		)`,
		`CREATE TABLE graves (
			usn integer NOT NULL,
			oid integer NOT NULL,
			type integer NOT NULL
		)`,
		`CREATE INDEX ix_notes_csum ON notes (csum)`,
		`CREATE INDEX ix_notes_usn ON notes (usn)`,
		`CREATE INDEX ix_cards_usn ON cards (usn)`,
		`CREATE INDEX ix_cards_nid ON cards (nid)`,
		`CREATE INDEX ix_cards_sched ON cards (did, queue, due)`,
		`CREATE INDEX ix_revlog_usn ON revlog (usn)`,
		`CREATE INDEX ix_revlog_cid ON revlog (cid)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) insertCollection(db *sql.DB) error {
	now := time.Now().Unix()

	decks := map[string]interface{}{
		"1": deckConfig(1, "Default", "", now),
		fmt.Sprintf("%d", e.deckID): deckConfig(e.deckID, e.deckName,
			"Danish vocabulary cards created by ordkort", now),
	}
	decksJSON, _ := json.Marshal(decks)

	models := map[string]interface{}{
		fmt.Sprintf("%d", e.modelID): e.noteType(),
	}
	modelsJSON, _ := json.Marshal(models)

	conf := map[string]interface{}{
		"nextPos":       1,
		"estTimes":      true,
		"activeDecks":   []int64{1},
		"sortType":      "noteFld",
		"sortBackwards": false,
		"addToCur":      true,
		"curDeck":       1,
		"newSpread":     0,
		"dueCounts":     true,
		"collapseTime":  1200,
		"timeLim":       0,
		"schedVer":      1,
		"curModel":      fmt.Sprintf("%d", e.modelID),
		"dayLearnFirst": false,
	}
	confJSON, _ := json.Marshal(conf)

	dconf := map[string]interface{}{
		"1": map[string]interface{}{
			"id":   1,
			"name": "Default",
			"dyn":  0,
			"new": map[string]interface{}{
				"delays":        []int{1, 10},
				"ints":          []int{1, 4, 7},
				"initialFactor": 2500,
				"perDay":        20,
				"order":         1,
				"bury":          true,
				"separate":      true,
			},
			"lapse": map[string]interface{}{
				"delays":      []int{10},
				"mult":        0,
				"minInt":      1,
				"leechFails":  8,
				"leechAction": 0,
			},
			"rev": map[string]interface{}{
				"perDay":   100,
				"ease4":    1.3,
				"fuzz":     0.05,
				"maxIvl":   36500,
				"ivlFct":   1,
				"bury":     true,
				"minSpace": 1,
			},
			"timer":    0,
			"maxTaken": 60,
			"usn":      0,
			"mod":      now,
			"autoplay": true,
			"replayq":  true,
		},
	}
	dconfJSON, _ := json.Marshal(dconf)

	query := `INSERT INTO col VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.Exec(query,
		1,        // id
		now,      // crt
		now*1000, // mod
		now*1000, // scm
		11,       // ver (schema version)
		0,        // dty
		0,        // usn
		0,        // ls
		string(confJSON),
		string(modelsJSON),
		string(decksJSON),
		string(dconfJSON),
		"{}",
	)
	return err
}

func deckConfig(id int64, name, desc string, now int64) map[string]interface{} {
	return map[string]interface{}{
		"id":               id,
		"name":             name,
		"mod":              now,
		"desc":             desc,
		"collapsed":        false,
		"dyn":              0,
		"conf":             1,
		"usn":              0,
		"newToday":         []int{0, 0},
		"revToday":         []int{0, 0},
		"lrnToday":         []int{0, 0},
		"timeToday":        []int{0, 0},
		"browserCollapsed": false,
		"extendNew":        10,
		"extendRev":        50,
	}
}

// noteType describes the Danish note model: both card directions come from
// the same six fields.
func (e *Exporter) noteType() map[string]interface{} {
	fieldNames := []string{
		"Word",
		"Danish Sentence",
		"Word Translation",
		"Sentence Translation",
		"Audio",
		"Sentence Audio",
	}
	flds := make([]map[string]interface{}, 0, len(fieldNames))
	for ord, name := range fieldNames {
		flds = append(flds, map[string]interface{}{
			"name":   name,
			"ord":    ord,
			"sticky": false,
			"rtl":    false,
			"font":   "Arial",
			"size":   20,
			"media":  []string{},
		})
	}

	return map[string]interface{}{
		"id":    e.modelID,
		"name":  "Danish (Forward + Reverse)",
		"type":  0,
		"mod":   time.Now().Unix(),
		"usn":   -1,
		"sortf": 0,
		"did":   e.deckID,
		"req":   [][]interface{}{{0, "all", []int{0}}, {1, "all", []int{2}}},
		"vers":  []int{},
		"tags":  []string{},
		"latexPre": `\documentclass[12pt]{article}
\special{papersize=3in,5in}
\usepackage[utf8]{inputenc}
\usepackage{amssymb,amsmath}
\pagestyle{empty}
\setlength{\parindent}{0in}
\begin{document}`,
		"latexPost": `\end{document}`,
		"flds":      flds,
		"tmpls": []map[string]interface{}{
			{
				"name":  "Forward",
				"ord":   0,
				"qfmt":  forwardFront,
				"afmt":  forwardBack,
				"did":   nil,
				"bqfmt": "",
				"bafmt": "",
			},
			{
				"name":  "Reverse",
				"ord":   1,
				"qfmt":  reverseFront,
				"afmt":  reverseBack,
				"did":   nil,
				"bqfmt": "",
				"bafmt": "",
			},
		},
		"css": cardCSS,
	}
}

const forwardFront = `<div class="front">
<div class="danish">{{Word}}</div>
<div class="sentence">{{Danish Sentence}}</div>
{{#Audio}}
<div class="audio">{{Audio}}</div>
{{/Audio}}
</div>`

const forwardBack = `{{FrontSide}}

<hr id="answer">

<div class="back">
<div class="english">{{Word Translation}}</div>
<div class="sentence">{{Sentence Translation}}</div>
{{#Sentence Audio}}
<div class="audio">{{Sentence Audio}}</div>
{{/Sentence Audio}}
</div>`

const reverseFront = `<div class="front">
<div class="english">{{Word Translation}}</div>
<div class="sentence">{{Sentence Translation}}</div>
</div>`

const reverseBack = `{{FrontSide}}

<hr id="answer">

<div class="back">
<div class="danish">{{Word}}</div>
<div class="sentence">{{Danish Sentence}}</div>
{{#Audio}}
<div class="audio">{{Audio}}</div>
{{/Audio}}
{{#Sentence Audio}}
<div class="audio">{{Sentence Audio}}</div>
{{/Sentence Audio}}
</div>`

const cardCSS = `.card {
  font-family: Arial, sans-serif;
  font-size: 20px;
  text-align: center;
  color: #333;
  background-color: white;
}

.front, .back {
  padding: 20px;
}

.danish {
  font-size: 32px;
  font-weight: bold;
  color: #c0392b;
  margin: 20px 0;
}

.english {
  font-size: 28px;
  font-weight: bold;
  color: #2c3e50;
  margin: 20px 0;
}

.sentence {
  font-size: 20px;
  margin: 10px 0;
}

.audio {
  margin: 15px 0;
}

hr#answer {
  margin: 30px 0;
  border: 0;
  border-top: 1px solid #ecf0f1;
}`

func (e *Exporter) insertRecords(db *sql.DB, records []*card.Record) error {
	now := time.Now()

	i := 0
	for _, rec := range records {
		if rec.Failed() {
			continue
		}

		// Two cards per note, leave room in the ID space.
		noteID := now.UnixMilli() + int64(i*3)
		i++

		fields := strings.Join([]string{
			rec.Word,
			rec.SentenceDA,
			rec.Translation,
			rec.SentenceEN,
			e.soundField(rec.WordAudio),
			e.soundField(rec.SentenceAudio),
		}, fieldSep)

		guid := fmt.Sprintf("ok_%d_%s", now.Unix(), rec.Word)

		noteQuery := `INSERT INTO notes VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := db.Exec(noteQuery,
			noteID,
			guid,
			e.modelID,
			now.Unix(),
			-1,       // usn
			"",       // tags
			fields,   // flds
			rec.Word, // sfld
			0,        // csum
			0,        // flags
			"",       // data
		)
		if err != nil {
			return fmt.Errorf("failed to insert note for %q: %w", rec.Word, err)
		}

		cardQuery := `INSERT INTO cards VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		for ord := 0; ord < 2; ord++ {
			_, err = db.Exec(cardQuery,
				noteID+1+int64(ord), // id
				noteID,              // nid
				e.deckID,            // did
				ord,                 // template ordinal
				now.Unix(),          // mod
				-1,                  // usn
				0,                   // type (new)
				0,                   // queue (new)
				noteID+int64(ord),   // due (position for new cards)
				0, 0, 0, 0, 0, 0, 0, 0,
				"",
			)
			if err != nil {
				return fmt.Errorf("failed to insert card for %q: %w", rec.Word, err)
			}
		}
	}

	return nil
}

func zipDirectory(dir, outputPath string) error {
	zipFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer zipFile.Close()

	archive := zip.NewWriter(zipFile)
	defer archive.Close()

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		writer, err := archive.Create(relPath)
		if err != nil {
			return err
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(writer, file)
		return err
	})
}
