package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/ebalza/reliquary/pkg/catalog"
	"github.com/ebalza/reliquary/pkg/filterstate"
)

// ArtifactCommand creates the artifact command with its curator subcommands
func ArtifactCommand() *cli.Command {
	return &cli.Command{
		Name:  "artifact",
		Usage: "Manage catalog artifacts",
		Commands: []*cli.Command{
			artifactAddCommand(),
			artifactShowCommand(),
			artifactListCommand(),
			artifactDeleteCommand(),
			artifactAddImageCommand(),
		},
	}
}

func artifactAddCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Add an artifact to the catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Usage: "Artifact title", Required: true},
			&cli.StringFlag{Name: "description", Usage: "Free-text description"},
			&cli.StringFlag{Name: "culture", Usage: "Culture, e.g. Roman"},
			&cli.StringFlag{Name: "period", Usage: "Period, e.g. Imperial"},
			&cli.StringFlag{Name: "site", Usage: "Excavation site"},
			&cli.StringFlag{Name: "region", Usage: "Geographic region"},
			&cli.StringSliceFlag{Name: "material", Usage: "Material. Can be used multiple times"},
			&cli.StringSliceFlag{Name: "tag", Usage: "Tag. Can be used multiple times"},
			&cli.IntFlag{Name: "date-start", Usage: "Earliest year of the dating (negative = BCE)", Value: filterstate.DefaultDateStart},
			&cli.IntFlag{Name: "date-end", Usage: "Latest year of the dating", Value: filterstate.DefaultDateEnd},
			&cli.StringFlag{Name: "model-url", Usage: "URL of a 3D model"},
			&cli.StringFlag{Name: "model-type", Usage: "3D model format, e.g. glb"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := openApp(c.String("config"))
			if err != nil {
				return err
			}
			defer a.Close()

			artifact := catalog.Artifact{
				Title:       c.String("title"),
				Description: c.String("description"),
				Culture:     c.String("culture"),
				Period:      c.String("period"),
				Site:        c.String("site"),
				Region:      c.String("region"),
				Materials:   c.StringSlice("material"),
				Tags:        c.StringSlice("tag"),
				DateStart:   c.Int("date-start"),
				DateEnd:     c.Int("date-end"),
				ModelURL:    c.String("model-url"),
				ModelType:   c.String("model-type"),
			}
			artifact.HasModel = artifact.ModelURL != ""
			if artifact.DateStart > artifact.DateEnd {
				return fmt.Errorf("date-start must not be greater than date-end")
			}

			id, err := a.store.CreateArtifact(&artifact)
			if err != nil {
				return fmt.Errorf("creating artifact: %w", err)
			}
			if a.engine != nil {
				if err := a.engine.Index(artifact); err != nil {
					fmt.Printf("Warning: failed to index artifact: %v\n", err)
				}
			}

			fmt.Printf("Created artifact %d: %s\n", id, artifact.Title)
			return nil
		},
	}
}

func artifactShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one artifact",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := parseIDArg(c)
			if err != nil {
				return err
			}

			a, err := openApp(c.String("config"))
			if err != nil {
				return err
			}
			defer a.Close()

			artifact, err := a.store.GetArtifact(id)
			if err != nil {
				return fmt.Errorf("loading artifact %d: %w", id, err)
			}
			images, err := a.store.ImagesForArtifact(id)
			if err != nil {
				return fmt.Errorf("loading images: %w", err)
			}
			enriched := catalog.Enrich(*artifact, images)

			fmt.Printf("%d. %s\n", enriched.ID, resultTitleStyle.Render(enriched.Title))
			fmt.Printf("   %s\n", resultMetaStyle.Render(describeArtifact(enriched.Artifact)))
			if enriched.Description != "" {
				fmt.Printf("   %s\n", enriched.Description)
			}
			if len(enriched.Tags) > 0 {
				fmt.Printf("   Tags: %s\n", strings.Join(enriched.Tags, ", "))
			}
			for _, url := range enriched.ImageURLs {
				marker := " "
				if url == enriched.PrimaryImageURL {
					marker = "*"
				}
				fmt.Printf("   %s %s\n", marker, url)
			}
			if enriched.HasModel {
				fmt.Printf("   Model: %s (%s)\n", enriched.ModelURL, enriched.ModelType)
			}
			return nil
		},
	}
}

func artifactListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List artifacts",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of artifacts", Value: 20},
			&cli.IntFlag{Name: "offset", Usage: "Number of artifacts to skip", Value: 0},
			&cli.BoolFlag{Name: "oldest-first", Usage: "Order by dating instead of id"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := openApp(c.String("config"))
			if err != nil {
				return err
			}
			defer a.Close()

			field := catalog.SortByID
			descending := true
			if c.Bool("oldest-first") {
				field = catalog.SortByDateStart
				descending = false
			}

			artifacts, err := a.store.ListArtifacts(field, descending, c.Int("limit"), c.Int("offset"))
			if err != nil {
				return fmt.Errorf("listing artifacts: %w", err)
			}
			if len(artifacts) == 0 {
				fmt.Println("No artifacts found")
				return nil
			}

			for _, artifact := range artifacts {
				fmt.Printf("%d. %s\n", artifact.ID, resultTitleStyle.Render(artifact.Title))
				fmt.Printf("   %s\n", resultMetaStyle.Render(describeArtifact(artifact)))
			}
			return nil
		},
	}
}

func artifactDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete an artifact",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := parseIDArg(c)
			if err != nil {
				return err
			}

			a, err := openApp(c.String("config"))
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.DeleteArtifact(id); err != nil {
				return fmt.Errorf("deleting artifact %d: %w", id, err)
			}
			if a.engine != nil {
				if err := a.engine.Delete(id); err != nil {
					fmt.Printf("Warning: failed to remove artifact from index: %v\n", err)
				}
			}

			fmt.Printf("Deleted artifact %d\n", id)
			return nil
		},
	}
}

func artifactAddImageCommand() *cli.Command {
	return &cli.Command{
		Name:      "add-image",
		Usage:     "Attach an image to an artifact",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "Image URL", Required: true},
			&cli.BoolFlag{Name: "primary", Usage: "Flag this image as the primary one"},
			&cli.IntFlag{Name: "sort-order", Usage: "Display position among the artifact's images"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := parseIDArg(c)
			if err != nil {
				return err
			}

			a, err := openApp(c.String("config"))
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.store.GetArtifact(id); err != nil {
				return fmt.Errorf("loading artifact %d: %w", id, err)
			}

			img := catalog.Image{
				ArtifactID: id,
				URL:        c.String("url"),
				Primary:    c.Bool("primary"),
				SortOrder:  c.Int("sort-order"),
			}
			imageID, err := a.store.AddImage(&img)
			if err != nil {
				return fmt.Errorf("adding image: %w", err)
			}

			fmt.Printf("Added image %d to artifact %d\n", imageID, id)
			return nil
		},
	}
}

func parseIDArg(c *cli.Command) (int64, error) {
	arg := c.Args().First()
	if arg == "" {
		return 0, fmt.Errorf("artifact id is required")
	}
	var id int64
	if _, err := fmt.Sscanf(arg, "%d", &id); err != nil || id < 1 {
		return 0, fmt.Errorf("artifact id must be a positive integer")
	}
	return id, nil
}
