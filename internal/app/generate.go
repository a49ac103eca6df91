package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/leo-rullani/backend-video-flix/internal/hls"
	"github.com/leo-rullani/backend-video-flix/internal/models"
	"github.com/leo-rullani/backend-video-flix/internal/repositories"
)

func newGenerateHLSCommand() *cobra.Command {
	var (
		videoID   int64
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "generate-hls",
		Short: "Generate HLS renditions for all videos or one video",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, svc *services) error {
				targets, err := generationTargets(ctx, svc.videos, videoID)
				if err != nil {
					return err
				}
				return generateHLS(ctx, cmd.OutOrStdout(), svc.transcoder, targets, overwrite)
			})
		},
	}

	cmd.Flags().Int64Var(&videoID, "video-id", 0, "Only process the video with this id")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Regenerate renditions that already exist")
	return cmd
}

type videoSource interface {
	Get(ctx context.Context, id int64) (models.Video, error)
	List(ctx context.Context) ([]models.Video, error)
}

func generationTargets(ctx context.Context, videos videoSource, videoID int64) ([]models.Video, error) {
	if videoID == 0 {
		return videos.List(ctx)
	}
	video, err := videos.Get(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("video %d does not exist", videoID)
		}
		return nil, err
	}
	return []models.Video{video}, nil
}

// generateHLS transcodes each video in turn. A failing video does not stop the
// others; the command fails afterwards if any video failed.
func generateHLS(ctx context.Context, out io.Writer, transcoder transcodeRunner, videos []models.Video, overwrite bool) error {
	rows := make([][]string, 0, len(videos))
	failed := 0

	for _, video := range videos {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		row := []string{strconv.FormatInt(video.ID, 10), video.Title, "", "", ""}
		if !video.HasSource() {
			row[4] = "no source file"
			rows = append(rows, row)
			continue
		}

		report, err := transcoder.Transcode(ctx, hls.Request{
			VideoID:    video.ID,
			SourcePath: video.SourcePath,
			Overwrite:  overwrite,
		})
		row[2] = labels(report.Generated)
		row[3] = labels(report.Skipped)
		if err != nil {
			failed++
			row[4] = "failed: " + err.Error()
		} else {
			row[4] = "ok"
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "no videos found")
		return nil
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Title", "Generated", "Skipped", "Status"}, rows))

	if failed > 0 {
		return fmt.Errorf("%d of %d videos failed", failed, len(videos))
	}
	return nil
}

func labels(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

func renderTable(headers []string, rows [][]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
