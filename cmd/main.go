package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-isatty"
	"github.com/phuslu/log"
	"github.com/urfave/cli/v2"

	"github.com/knights-analytics/safefetch"
	"github.com/knights-analytics/safefetch/util"
)

var modelID string
var revision string
var authToken string
var outputPath string
var tensorName string
var shardFile string
var jsonOutput bool
var verbose bool

var modelFlag = &cli.StringFlag{
	Name:        "model",
	Usage:       "Model id on the hub, e.g. Qwen/Qwen2.5-7B-Instruct",
	Aliases:     []string{"m"},
	Destination: &modelID,
	Required:    true,
}

var revisionFlag = &cli.StringFlag{
	Name:        "revision",
	Usage:       "Repository revision (branch, tag or commit)",
	Aliases:     []string{"r"},
	Destination: &revision,
	Value:       "main",
}

var tokenFlag = &cli.StringFlag{
	Name:        "token",
	Usage:       "Bearer token for gated repositories. Falls back to $HF_TOKEN",
	Destination: &authToken,
}

var outputFlag = &cli.StringFlag{
	Name:        "output",
	Usage:       "Destination path or s3:// URL. If omitted, the output is sent to stdout",
	Aliases:     []string{"o"},
	Destination: &outputPath,
}

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "List the tensors of a remote safetensors model",
	Flags: []cli.Flag{
		modelFlag,
		revisionFlag,
		tokenFlag,
		outputFlag,
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Emit the listing as JSON",
			Destination: &jsonOutput,
		},
	},
	Action: func(ctx *cli.Context) error {
		model, err := newClient().ResolveModel(ctx.Context, modelID)
		if err != nil {
			return err
		}

		var out []byte
		if jsonOutput {
			out, err = renderJSON(model)
			if err != nil {
				return err
			}
		} else {
			out = renderTable(model)
		}

		if outputPath != "" {
			return util.WriteFileBytes(ctx.Context, outputPath, out)
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

var headerCommand = &cli.Command{
	Name:  "header",
	Usage: "Dump the raw metadata JSON of one shard file",
	Flags: []cli.Flag{
		modelFlag,
		revisionFlag,
		tokenFlag,
		outputFlag,
		&cli.StringFlag{
			Name:        "file",
			Usage:       "Shard file name within the repository",
			Aliases:     []string{"f"},
			Destination: &shardFile,
			Value:       "model.safetensors",
		},
	},
	Action: func(ctx *cli.Context) error {
		client := newClient()
		raw, dataStart, err := client.RawHeader(ctx.Context, client.FileURL(modelID, shardFile))
		if err != nil {
			return err
		}
		log.Debug().Str("file", shardFile).Int("bytes", len(raw)).Int64("dataStart", dataStart).
			Msg("fetched shard header")

		out := append(raw, '\n')
		if outputPath != "" {
			return util.WriteFileBytes(ctx.Context, outputPath, out)
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

var getCommand = &cli.Command{
	Name:  "get",
	Usage: "Fetch the raw bytes of one tensor",
	Flags: []cli.Flag{
		modelFlag,
		revisionFlag,
		tokenFlag,
		outputFlag,
		&cli.StringFlag{
			Name:        "tensor",
			Usage:       "Name of the tensor to fetch",
			Aliases:     []string{"t"},
			Destination: &tensorName,
			Required:    true,
		},
	},
	Action: func(ctx *cli.Context) error {
		model, err := newClient().ResolveModel(ctx.Context, modelID)
		if err != nil {
			return err
		}
		tensor, ok := model[tensorName]
		if !ok {
			return fmt.Errorf("tensor %q not found in model %s", tensorName, modelID)
		}

		log.Info().Str("tensor", tensorName).Int64("bytes", tensor.Size()).Str("url", tensor.URL()).
			Msg("fetching tensor data")
		data, err := tensor.Data(ctx.Context)
		if err != nil {
			return err
		}

		if outputPath != "" {
			return util.WriteFileBytes(ctx.Context, outputPath, data)
		}
		if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
			return fmt.Errorf("refusing to write raw tensor bytes to a terminal, use --output or redirect stdout")
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func newClient() *safefetch.Client {
	var opts []safefetch.WithOption
	if revision != "" {
		opts = append(opts, safefetch.WithRevision(revision))
	}
	if authToken != "" {
		opts = append(opts, safefetch.WithAuthToken(authToken))
	}
	return safefetch.NewClient(opts...)
}

func renderJSON(model safefetch.ResolvedModel) ([]byte, error) {
	type tensorEntry struct {
		Name  string  `json:"name"`
		Dtype string  `json:"dtype"`
		Shape []int64 `json:"shape"`
		Size  int64   `json:"size"`
		URL   string  `json:"url"`
	}
	entries := make([]tensorEntry, 0, len(model))
	for _, name := range model.Names() {
		t := model[name]
		entries = append(entries, tensorEntry{
			Name:  t.Name(),
			Dtype: t.Dtype(),
			Shape: t.Shape(),
			Size:  t.Size(),
			URL:   t.URL(),
		})
	}
	return jsoniter.MarshalIndent(entries, "", "  ")
}

func renderTable(model safefetch.ResolvedModel) []byte {
	var builder strings.Builder
	for _, name := range model.Names() {
		t := model[name]
		dims := make([]string, len(t.Shape()))
		for i, dim := range t.Shape() {
			dims[i] = strconv.FormatInt(dim, 10)
		}
		fmt.Fprintf(&builder, "%s\t%s\t[%s]\t%d bytes\n", name, t.Dtype(), strings.Join(dims, ", "), t.Size())
	}
	fmt.Fprintf(&builder, "%d tensors, %s parameters, %d bytes total\n",
		len(model), safefetch.ParamsLabel(model.TotalParameters()), model.TotalBytes())
	return []byte(builder.String())
}

func main() {
	app := &cli.App{
		Name:  "safefetch",
		Usage: "Enumerate and read tensors from remote safetensors models",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "verbose",
				Usage:       "Enable debug logging",
				Aliases:     []string{"v"},
				Destination: &verbose,
			},
		},
		Before: func(ctx *cli.Context) error {
			if verbose {
				log.DefaultLogger.Level = log.DebugLevel
			} else {
				log.DefaultLogger.Level = log.WarnLevel
			}
			return nil
		},
		Commands: []*cli.Command{listCommand, headerCommand, getCommand},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("safefetch failed")
	}
}
