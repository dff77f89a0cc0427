package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
	"github.com/urfave/cli"

	dra "github.com/d-krupke/drone-range-assignment"
	"github.com/d-krupke/drone-range-assignment/mip/bnc"
)

func main() {
	app := cli.NewApp()
	app.Name = "solver"
	app.Usage = "solve a drone range assignment instance and store the solution in the instance file"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "input", Value: "input.json", Usage: "Path to the input instance"},
		cli.StringFlag{Name: "output", Usage: "Path to the output file. By default the input file will be overwritten adding the solution"},
		cli.DurationFlag{Name: "time", Value: dra.DefaultTimeLimit, Usage: "Time limit for the optimization"},
		cli.Float64Flag{Name: "eps", Value: dra.DefaultEps, Usage: "Tolerance used for the feasibility check of the solution"},
		cli.IntFlag{Name: "log", Value: 2, Usage: "Level of the logging output. Higher value is more verbose. Range 1-4"},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func sysInfo() dra.SysInfo {
	info := dra.SysInfo{}
	if hostStat, err := host.Info(); err == nil {
		info.Platform = hostStat.Platform
	}
	if cpuStat, err := cpu.Info(); err == nil && len(cpuStat) > 0 {
		info.CPU = cpuStat[0].ModelName
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		info.RAM = fmt.Sprintf("%d GB", vmStat.Total/1024/1024/1024)
	}
	return info
}

func run(c *cli.Context) error {
	dra.InitLoggers(c.Int("log"))
	inputF := c.String("input")

	instStr, err := ioutil.ReadFile(inputF)
	if err != nil {
		dra.Log(dra.LOG_ERROR, "At %s: %s", inputF, err.Error())
		return err
	}
	var pInst dra.InstanceFile
	if err = json.Unmarshal(instStr, &pInst); err != nil {
		dra.Log(dra.LOG_ERROR, "At %s: %s", inputF, err.Error())
		return err
	}
	inst, err := pInst.Instance()
	if err != nil {
		dra.Log(dra.LOG_ERROR, "At %s: %s", inputF, err.Error())
		return err
	}

	collector, err := dra.NewCollector(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	solver, err := dra.NewSolver(bnc.NewModel(pInst.Name, dra.Log), inst)
	if err != nil {
		dra.Log(dra.LOG_ERROR, "At %s: %s", inputF, err.Error())
		return err
	}
	solver.Collector = collector

	eps := c.Float64("eps")
	runID := uuid.New().String()
	sol, err := solver.Solve(c.Duration("time"))
	if err != nil {
		dra.Log(dra.LOG_ERROR, "At %s: %s", inputF, err.Error())
		return err
	}

	rec := dra.SolutionRecord{Eps: eps, Time: solver.Elapsed.String()}
	if sol != nil {
		if rec, err = solver.Record(sol, eps); err != nil {
			return err
		}
		if rec.Feasible {
			dra.Log(dra.LOG_INFO, "The computed solution is feasible!")
		}
		dra.Log(dra.LOG_INFO, "Found a solution with total power %g (gap %.4f)", sol.Objective(), sol.Gap())
	} else {
		rec.Comment = fmt.Sprintf("No solution found (%s). ", solver.Status())
	}
	rec.RunID = runID
	rec.System = sysInfo()
	rec.Comment += fmt.Sprintf("Solver-Settings: Engine=bnc, TimeLimit=%s, Status=%s, Nodes=%d",
		c.Duration("time"), solver.Status(), solverNodes(solver))
	pInst.Solution = &rec

	return writeSolution(c, &pInst, inputF)
}

func solverNodes(s *dra.Solver) int {
	if m, ok := s.Model().(*bnc.Model); ok {
		return m.NodeCount
	}
	return 0
}

func writeSolution(c *cli.Context, pInst *dra.InstanceFile, inputF string) error {
	jsonInst, err := json.MarshalIndent(pInst, "", "\t")
	if err != nil {
		dra.Log(dra.LOG_ERROR, "At %s: %s", inputF, err.Error())
		return err
	}
	jsonInst = []byte(dra.SanitizeJsonArrayLineBreaks(string(jsonInst)))
	fileName := c.String("output")
	if fileName == "" {
		fileName = inputF //overwrite the input file
	}
	start := time.Now()
	if err = ioutil.WriteFile(fileName, jsonInst, 0644); err != nil {
		dra.Log(dra.LOG_ERROR, "At %s: %s", inputF, err.Error())
		return err
	}
	dra.Log(dra.LOG_DEBUG, "Wrote %s in %s", fileName, time.Since(start))
	return nil
}
