package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli"

	dra "github.com/d-krupke/drone-range-assignment"
)

func main() {
	app := cli.NewApp()
	app.Name = "analyzer"
	app.Usage = "print a CSV summary of all solved instance files in a directory"
	app.ArgsUsage = "DIR"
	app.Flags = []cli.Flag{
		cli.Float64Flag{Name: "eps", Value: -1, Usage: "Tolerance for the feasibility check. By default the one stored with the solution"},
	}
	app.Action = func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.NewExitError("No arguments passed!", 1)
		}
		return analyze(c.Args().First(), c.Float64("eps"))
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func analyze(dirName string, eps float64) error {
	dir, err := ioutil.ReadDir(dirName)
	if err != nil {
		return fmt.Errorf("couldn't open directory %s: %w", dirName, err)
	}
	fmt.Printf("Name,Optimal,Time,Obj,LBound,Gap,Terminals,Drones,Feasible,Comment\n")
	for _, f := range dir {
		if !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		fileName := filepath.Join(dirName, f.Name())
		instStr, err := ioutil.ReadFile(fileName)
		if err != nil {
			return fmt.Errorf("couldn't read %s: %w", f.Name(), err)
		}
		var file dra.InstanceFile
		if err = json.Unmarshal(instStr, &file); err != nil {
			return fmt.Errorf("couldn't parse %s: %w", f.Name(), err)
		}
		if file.Solution == nil {
			fmt.Printf("No solution for %s\n", file.Name)
			continue
		}
		rec := *file.Solution
		feasible, comment := check(&file, eps)
		if comment != "" {
			rec.Comment = fmt.Sprintf("%s %s", rec.Comment, comment)
		}
		gap := 0.0
		if rec.Obj > 0 {
			gap = math.Round((rec.Obj-rec.LBound)/rec.Obj*1000) / 1000.0
		}
		fmt.Printf("%s,%t,%s,%g,%g,%.4f,%d,%d,%t,%s\n", file.Name, rec.Optimal, rec.Time, rec.Obj, rec.LBound, gap,
			len(file.NodeCoordinates), file.DroneCount, feasible, strings.ReplaceAll(rec.Comment, ",", ";"))
	}
	return nil
}

// check recomputes feasibility from the stored powers and drone positions.
func check(file *dra.InstanceFile, eps float64) (bool, string) {
	inst, err := file.Instance()
	if err != nil {
		return false, err.Error()
	}
	rec := file.Solution
	if len(rec.Powers) != inst.NumAgents() || len(rec.Drones) != inst.NumDrones() {
		return false, "solution does not match the instance"
	}
	if eps < 0 {
		eps = rec.Eps
	}
	power := make(map[dra.Agent]float64, inst.NumAgents())
	for id, a := range inst.Agents() {
		power[a] = rec.Powers[id]
	}
	positions := make(map[dra.Agent]dra.Point, inst.NumDrones())
	for _, d := range inst.Drones() {
		p := rec.Drones[d.Index]
		if len(p) != 2 {
			return false, fmt.Sprintf("bad position for %s", d)
		}
		positions[d] = dra.Point{X: p[0], Y: p[1]}
	}
	sol := dra.NewSolution(inst, power, positions, rec.LBound)
	if t, reachable, bad := sol.Unreachable(eps); bad {
		return false, fmt.Sprintf("%s only reaches %d agents", t, len(reachable))
	}
	return true, ""
}
