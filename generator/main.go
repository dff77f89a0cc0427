package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli"

	dra "github.com/d-krupke/drone-range-assignment"
)

func main() {
	app := cli.NewApp()
	app.Name = "generator"
	app.Usage = "generate random drone range assignment instances"
	app.Flags = []cli.Flag{
		cli.IntSliceFlag{Name: "n", Usage: "List of number of terminals"},
		cli.IntSliceFlag{Name: "m", Usage: "List of number of drones"},
		cli.StringFlag{Name: "name", Value: "dra", Usage: "Name for the instance"},
		cli.StringFlag{Name: "outputDir", Value: ".", Usage: "Output directory"},
		cli.IntFlag{Name: "count", Value: 1, Usage: "Number of instances per combination"},
		cli.IntFlag{Name: "x", Value: 1000, Usage: "Max value on the x-axis"},
		cli.IntFlag{Name: "y", Value: 1000, Usage: "Max value on the y-axis"},
		cli.Int64Flag{Name: "seed", Usage: "Seed for the random generator. By default the current time"},
	}
	app.Action = generate
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func generate(c *cli.Context) error {
	seed := c.Int64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	xTo, yTo := c.Int("x"), c.Int("y")
	if xTo <= 0 || yTo <= 0 {
		return cli.NewExitError("x and y must be positive", 1)
	}
	name := c.String("name")
	for l := 0; l < c.Int("count"); l++ {
		for _, n := range c.IntSlice("n") {
			coordinatesArray := make([][]float64, n)
			for node := 0; node < n; node++ {
				coordinatesArray[node] = []float64{float64(rng.Intn(xTo)), float64(rng.Intn(yTo))}
			}
			for _, m := range c.IntSlice("m") {
				comment := fmt.Sprintf("%s instance Nr. %d with %d terminals and %d drones", name, l, n, m)
				instName := fmt.Sprintf("%s_%d_%d_%d", name, n, m, l)
				file := dra.InstanceFile{Name: instName, Comment: comment, Type: dra.INSTANCE_TYPE, TerminalCount: n, DroneCount: m, NodeCoordinates: coordinatesArray}
				// reject what the solver would reject
				if _, err := file.Instance(); err != nil {
					return fmt.Errorf("%s: %w", instName, err)
				}

				jsonInst, err := json.MarshalIndent(file, "", "\t")
				if err != nil {
					return err
				}
				jsonInst = []byte(dra.SanitizeJsonArrayLineBreaks(string(jsonInst)))
				if err = ioutil.WriteFile(filepath.Join(c.String("outputDir"), instName+".json"), jsonInst, 0644); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
