package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/BeckettFrey/speech-diarizer/internal/render"
	"github.com/BeckettFrey/speech-diarizer/speechmine"
)

// transcriptFlags are accepted by every command that loads a transcript.
type transcriptFlags struct {
	metadataPath   string
	candidatesPath string
	columns        speechmine.ColumnOptions
}

func (tf *transcriptFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&tf.metadataPath, "metadata", "", "Metadata JSON (default: <transcript>_metadata.json when present)")
	fs.StringVar(&tf.candidatesPath, "column-candidates", "", "JSON file overriding the header names used for column detection")
	fs.StringVar(&tf.columns.TypeColumn, "type-column", "", "Column name or #index for the row type")
	fs.StringVar(&tf.columns.SpeakerColumn, "speaker-column", "", "Column name or #index for the speaker")
	fs.StringVar(&tf.columns.StartColumn, "start-column", "", "Column name or #index for start times")
	fs.StringVar(&tf.columns.EndColumn, "end-column", "", "Column name or #index for end times")
	fs.StringVar(&tf.columns.TextColumn, "text-column", "", "Column name or #index for segment text")
	fs.StringVar(&tf.columns.WordColumn, "word-column", "", "Column name or #index for words")
	fs.StringVar(&tf.columns.PositionColumn, "position-column", "", "Column name or #index for word positions")
	fs.StringVar(&tf.columns.ConfidenceColumn, "confidence-column", "", "Column name or #index for confidences")
}

func (tf *transcriptFlags) load(path string) (*speechmine.Transcript, error) {
	trimAll(&tf.metadataPath, &tf.candidatesPath)
	if tf.candidatesPath != "" {
		data, err := os.ReadFile(tf.candidatesPath)
		if err != nil {
			return nil, fmt.Errorf("read column candidates: %w", err)
		}
		var candidates speechmine.ColumnCandidates
		if err := json.Unmarshal(data, &candidates); err != nil {
			return nil, fmt.Errorf("decode column candidates: %w", err)
		}
		speechmine.SetColumnCandidates(candidates)
	}
	var (
		meta *speechmine.Metadata
		err  error
	)
	if tf.metadataPath != "" {
		meta, err = speechmine.LoadMetadata(tf.metadataPath)
	} else {
		meta, err = speechmine.DiscoverMetadata(path)
	}
	if err != nil {
		return nil, err
	}
	return speechmine.LoadTranscript(path, meta, tf.columns)
}

// outputFlags choose between stdout and a JSON file.
type outputFlags struct {
	path string
}

func (of *outputFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&of.path, "o", "", "Write JSON to this file instead of stdout")
}

func (of *outputFlags) emit(env *cliEnv, v any) error {
	trimAll(&of.path)
	if of.path == "" {
		return render.WriteJSON(env.stdout, v)
	}
	if err := render.SaveJSON(of.path, v); err != nil {
		return err
	}
	fmt.Fprintf(env.stderr, "saved %s\n", of.path)
	return nil
}

func runSearch(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "search", "QUERY TRANSCRIPT [METADATA]")
	var (
		tf         transcriptFlags
		configPath string
		saveConfig string
		savePath   string
		format     string
		minScore   float64
		maxScore   float64
		topK       int
		outputType string
		tolerance  int
	)
	tf.register(fs)
	defaults := speechmine.DefaultOptions()
	fs.StringVar(&configPath, "config", "", "Search options file, JSON or YAML (default: ./search.json when present)")
	fs.StringVar(&saveConfig, "save-config", "", "Write the effective search options to this JSON or YAML file")
	fs.StringVar(&savePath, "save-path", "", "Write the JSON results to this file instead of stdout")
	fs.StringVar(&format, "format", "json", "Output format: json or text")
	fs.Float64Var(&minScore, "similarity-min", defaults.SimilarityMin, "Lowest similarity score to report")
	fs.Float64Var(&maxScore, "similarity-max", defaults.SimilarityMax, "Highest similarity score to report")
	fs.IntVar(&topK, "top-k", defaults.TopK, "Maximum number of results")
	fs.StringVar(&outputType, "output-type", string(defaults.OutputType), "Result shape: utterance or timestamp")
	fs.IntVar(&tolerance, "window-tolerance", defaults.WindowTolerance, "Window sizes tried around the query length, in tokens")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs(fs, positional, 2, 3, "QUERY TRANSCRIPT [METADATA]"); err != nil {
		return err
	}
	if len(positional) == 3 && tf.metadataPath == "" {
		tf.metadataPath = positional[2]
	}

	opts, err := speechmine.LoadOptions(configPath)
	if err != nil {
		return fmt.Errorf("load search options: %w", err)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "similarity-min":
			opts.SimilarityMin = minScore
		case "similarity-max":
			opts.SimilarityMax = maxScore
		case "top-k":
			opts.TopK = topK
		case "output-type":
			opts.OutputType = speechmine.OutputType(outputType)
		case "window-tolerance":
			opts.WindowTolerance = tolerance
		}
	})
	if err := opts.Validate(); err != nil {
		return err
	}
	if format != "json" && format != "text" {
		return fmt.Errorf("unknown format %q", format)
	}
	if saveConfig != "" {
		if err := speechmine.SaveOptions(saveConfig, opts); err != nil {
			return fmt.Errorf("save search options: %w", err)
		}
	}

	t, err := tf.load(positional[1])
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	resp, err := speechmine.NewService(nil, env.logger).Search(ctx, t, positional[0], opts)
	if err != nil {
		return err
	}

	switch {
	case savePath != "":
		if err := render.SaveJSON(savePath, resp); err != nil {
			return err
		}
		fmt.Fprintf(env.stderr, "saved %d matches to %s\n", resp.TotalMatches, savePath)
		return nil
	case format == "text":
		return render.WriteResults(env.stdout, resp)
	default:
		return render.WriteJSON(env.stdout, resp)
	}
}

func runStats(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "stats", "TRANSCRIPT")
	var (
		tf  transcriptFlags
		out outputFlags
	)
	tf.register(fs)
	out.register(fs)
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs(fs, positional, 1, 1, "TRANSCRIPT"); err != nil {
		return err
	}
	t, err := tf.load(positional[0])
	if err != nil {
		return err
	}
	return out.emit(env, t.Stats())
}

func runWord(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "word", "TRANSCRIPT UTTERANCE INDEX")
	var (
		tf  transcriptFlags
		out outputFlags
	)
	tf.register(fs)
	out.register(fs)
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs(fs, positional, 3, 3, "TRANSCRIPT UTTERANCE INDEX"); err != nil {
		return err
	}
	nums, err := parseInts(positional[1:], "utterance", "index")
	if err != nil {
		return err
	}
	t, err := tf.load(positional[0])
	if err != nil {
		return err
	}
	ref, err := t.LookupWord(nums[0], nums[1])
	if err != nil {
		return err
	}
	return out.emit(env, ref)
}

func runRange(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "range", "TRANSCRIPT UTTERANCE START END")
	var (
		tf  transcriptFlags
		out outputFlags
	)
	tf.register(fs)
	out.register(fs)
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs(fs, positional, 4, 4, "TRANSCRIPT UTTERANCE START END"); err != nil {
		return err
	}
	nums, err := parseInts(positional[1:], "utterance", "start", "end")
	if err != nil {
		return err
	}
	t, err := tf.load(positional[0])
	if err != nil {
		return err
	}
	r, err := t.WordRange(nums[0], nums[1], nums[2])
	if err != nil {
		return err
	}
	return out.emit(env, r)
}

func runUtterance(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "utterance", "TRANSCRIPT NUMBER")
	var (
		tf  transcriptFlags
		out outputFlags
	)
	tf.register(fs)
	out.register(fs)
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs(fs, positional, 2, 2, "TRANSCRIPT NUMBER"); err != nil {
		return err
	}
	nums, err := parseInts(positional[1:], "utterance")
	if err != nil {
		return err
	}
	t, err := tf.load(positional[0])
	if err != nil {
		return err
	}
	d, err := t.UtteranceByNumber(nums[0])
	if err != nil {
		return err
	}
	return out.emit(env, d)
}

func runFind(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "find", "TRANSCRIPT TEXT")
	var (
		tf            transcriptFlags
		out           outputFlags
		caseSensitive bool
	)
	tf.register(fs)
	out.register(fs)
	fs.BoolVar(&caseSensitive, "case-sensitive", false, "Match letter case exactly")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs(fs, positional, 2, 2, "TRANSCRIPT TEXT"); err != nil {
		return err
	}
	t, err := tf.load(positional[0])
	if err != nil {
		return err
	}
	hits := t.FindWords(positional[1], caseSensitive)
	if hits == nil {
		hits = []speechmine.WordHit{}
	}
	return out.emit(env, hits)
}

func runTimeRange(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "timerange", "TRANSCRIPT START END")
	var (
		tf  transcriptFlags
		out outputFlags
	)
	tf.register(fs)
	out.register(fs)
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs(fs, positional, 3, 3, "TRANSCRIPT START END"); err != nil {
		return err
	}
	start, err := strconv.ParseFloat(positional[1], 64)
	if err != nil {
		return fmt.Errorf("invalid start %q", positional[1])
	}
	end, err := strconv.ParseFloat(positional[2], 64)
	if err != nil {
		return fmt.Errorf("invalid end %q", positional[2])
	}
	t, err := tf.load(positional[0])
	if err != nil {
		return err
	}
	words := t.WordsInTimeRange(start, end)
	if words == nil {
		words = []speechmine.Word{}
	}
	return out.emit(env, words)
}

func runExport(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "export", "TRANSCRIPT")
	var (
		tf   transcriptFlags
		out  outputFlags
		kind string
	)
	tf.register(fs)
	out.register(fs)
	fs.StringVar(&kind, "kind", string(speechmine.ExportDocument), "What to export: words, utterances or json")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs(fs, positional, 1, 1, "TRANSCRIPT"); err != nil {
		return err
	}
	t, err := tf.load(positional[0])
	if err != nil {
		return err
	}
	v, err := t.Export(speechmine.ExportKind(kind))
	if err != nil {
		return err
	}
	return out.emit(env, v)
}

func runScript(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "script", "TRANSCRIPT")
	var (
		tf             transcriptFlags
		outPath        string
		speakersPath   string
		createTemplate bool
	)
	tf.register(fs)
	fs.StringVar(&outPath, "o", "", "Write the script to this file instead of stdout")
	fs.StringVar(&speakersPath, "speakers", "", "JSON file mapping speaker labels to names")
	fs.BoolVar(&createTemplate, "create-template", false, "Write <transcript>_speaker_names.json and exit")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs(fs, positional, 1, 1, "TRANSCRIPT"); err != nil {
		return err
	}
	t, err := tf.load(positional[0])
	if err != nil {
		return err
	}

	if createTemplate {
		path := render.SpeakerTemplatePathFor(positional[0])
		if err := render.SaveJSON(path, render.SpeakerTemplate(t)); err != nil {
			return err
		}
		fmt.Fprintf(env.stderr, "speaker name template written to %s\n", path)
		return nil
	}

	var names render.SpeakerNames
	if speakersPath != "" {
		if names, err = render.LoadSpeakerNames(speakersPath); err != nil {
			return err
		}
	}
	if outPath == "" {
		return render.WriteScript(env.stdout, t, names)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create script file: %w", err)
	}
	if err := render.WriteScript(f, t, names); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close script file: %w", err)
	}
	fmt.Fprintf(env.stderr, "script written to %s\n", outPath)
	return nil
}

func runInspect(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "inspect", "TRANSCRIPT")
	var out outputFlags
	out.register(fs)
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs(fs, positional, 1, 1, "TRANSCRIPT"); err != nil {
		return err
	}
	info, err := speechmine.InspectTranscriptColumns(positional[0])
	if err != nil {
		return err
	}
	return out.emit(env, info)
}

func parseInts(values []string, names ...string) ([]int, error) {
	out := make([]int, len(values))
	for i, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", names[i], v)
		}
		out[i] = n
	}
	return out, nil
}
