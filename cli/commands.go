package cli

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/cppla/myresource/catalog"
	"github.com/cppla/myresource/models"
	"github.com/cppla/myresource/routes"
	"github.com/cppla/myresource/upload"
	"github.com/cppla/myresource/utils"
)

// sweepInterval is how often the server looks for orphaned local blobs.
const sweepInterval = 30 * time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			// seed before the first request
			if _, err := a.store.Load(ctx); err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			r := routes.SetupRouter(a.routerDeps())
			if a.local != nil {
				upload.StartSweeper(ctx, sweepInterval, a.sweepOrphans, utils.Logger)
			}

			utils.Sugar.Infof("Starting server on port %s (graceful)", a.cfg.AppPort)
			return utils.GraceServer(ctx, ":"+a.cfg.AppPort, r)
		},
	}
}

func newListCmd() *cobra.Command {
	var category, search, sort string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List resources with optional filter and sort",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := catalog.ParseFilter(category, search, sort)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.engine.Query(ctx, filter)
			if err != nil {
				return err
			}
			return renderList(cmd.OutOrStdout(), catalog.NewCards(list, nil))
		},
	}
	cmd.Flags().StringVar(&category, "category", "all", "all, video, image, software, document, audio or other")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Case-insensitive match on name, description and tags")
	cmd.Flags().StringVar(&sort, "sort", "newest", "newest, oldest, name or size")
	return cmd
}

func renderList(w io.Writer, cards []catalog.Card) error {
	if len(cards) == 0 {
		_, err := fmt.Fprintln(w, "没有找到资源")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tSIZE\tDATE\tDOWNLOADS\tTAGS")
	for _, c := range cards {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			c.ID, c.Name, c.CategoryName, c.SizeText, c.DateText, c.Downloads, strings.Join(c.Tags, ","))
	}
	return tw.Flush()
}

func newUploadCmd() *cobra.Command {
	var meta upload.Metadata
	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Add files to the catalog as one resource",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := filesFromPaths(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			rec, err := a.pipeline.Upload(ctx, files, meta, func(e upload.Event) {
				switch e.Type {
				case upload.EventProgress:
					fmt.Fprintf(out, "\r上传中... %d%%", e.Progress)
				case upload.EventComplete:
					fmt.Fprintln(out, "\r上传完成！")
				}
			})
			if err != nil {
				fmt.Fprintln(out)
				return err
			}
			return renderList(out, []catalog.Card{catalog.NewCard(rec, nil)})
		},
	}
	cmd.Flags().StringVarP(&meta.Name, "name", "n", "", "Resource name (default: first file name)")
	cmd.Flags().StringVar(&meta.Category, "category", "", "Category (default: guessed from the first file)")
	cmd.Flags().StringVarP(&meta.Tags, "tags", "t", "", "Comma separated tags")
	cmd.Flags().StringVarP(&meta.Description, "description", "d", "", "Description")
	return cmd
}

func filesFromPaths(paths []string) ([]upload.File, error) {
	files := make([]upload.File, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}
		path := p
		files = append(files, upload.File{
			Name: filepath.Base(path),
			Size: info.Size(),
			Type: mime.TypeByExtension(filepath.Ext(path)),
			Open: func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}
	return files, nil
}

func newDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <id>",
		Short: "Count a download and print where the file is",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.store.RecordDownload(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "开始下载: "+rec.Name)
			if rec.URL != "" {
				fmt.Fprintln(out, rec.URL)
			}
			return nil
		},
	}
}

// writeClipboard is swapped in tests.
var writeClipboard = clipboard.WriteAll

func newShareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "share <id>",
		Short: "Copy a resource link to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			origin := a.cfg.PublicOrigin
			if origin == "" {
				origin = "http://localhost:" + a.cfg.AppPort
			}
			shareLink(cmd.OutOrStdout(), shareURL(origin, rec))
			return nil
		},
	}
}

func shareURL(origin string, rec models.Resource) string {
	return strings.TrimRight(origin, "/") + "/resource/" + rec.ID
}

// shareLink copies url, printing it for manual copying when there is no clipboard.
func shareLink(w io.Writer, url string) {
	if err := writeClipboard(url); err != nil {
		utils.Sugar.Debugf("clipboard unavailable: %v", err)
		fmt.Fprintln(w, "复制链接: "+url)
		return
	}
	fmt.Fprintln(w, "链接已复制到剪贴板")
}

func newThemeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|toggle]",
		Short:     "Show or change the theme preference",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"light", "dark", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var theme catalog.Theme
			switch {
			case len(args) == 0:
				theme, err = a.prefs.Theme(ctx)
			case args[0] == "toggle":
				theme, err = a.prefs.ToggleTheme(ctx)
			default:
				if theme, err = catalog.ParseTheme(args[0]); err == nil {
					err = a.prefs.SetTheme(ctx, theme)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme)
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog totals and storage usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.store.Load(ctx)
			if err != nil {
				return err
			}
			renderStats(cmd.OutOrStdout(), catalog.ComputeStats(list, a.cfg.StorageQuotaGB))
			return nil
		},
	}
}

func renderStats(w io.Writer, s catalog.Stats) {
	fmt.Fprintf(w, "文件总数: %d\n", s.TotalFiles)
	fmt.Fprintf(w, "总大小: %s\n", s.SizeText)
	fmt.Fprintf(w, "存储使用: %.1f%% / %g GB\n", s.UsagePercent, s.QuotaGB)
}
