/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/rupeshkmr/phiflow/fluid"
	"github.com/rupeshkmr/phiflow/simparams"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a smoke plume simulation from a YAML parameter file",
	Long: `
Reads simulation parameters from a YAML file and advances a buoyant
smoke plume: semi-Lagrangian advection, buoyancy forcing and a
conjugate-gradient pressure projection every step.

phiflow run -F plume.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		paramFile, _ := cmd.Flags().GetString("paramFile")
		steps, _ := cmd.Flags().GetInt("steps")
		prof, _ := cmd.Flags().GetBool("profile")
		if prof {
			defer profile.Start().Stop()
		}
		if err := runSimulation(paramFile, steps); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("paramFile", "F", "", "YAML parameter file for the simulation")
	runCmd.Flags().IntP("steps", "s", 0, "number of steps to run, overrides the parameter file")
	runCmd.Flags().Bool("profile", false, "write a CPU profile for the run")
}

func runSimulation(paramFile string, steps int) error {
	if paramFile == "" {
		return fmt.Errorf("a parameter file is required, use -F")
	}
	data, err := ioutil.ReadFile(paramFile)
	if err != nil {
		return err
	}
	var params simparams.Parameters
	if err = params.Parse(data); err != nil {
		return fmt.Errorf("%s: %w", paramFile, err)
	}
	params.Print()
	if steps == 0 {
		steps = params.Steps
	}
	sim, err := fluid.NewSimulation(params)
	if err != nil {
		return err
	}
	return sim.Run(steps)
}
