package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mathesar-foundation/devstack/internal/core/deployment"
)

var flagRenderResolve bool

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the fully resolved stack manifest",
	Long: `Render loads the manifest, resolves service inheritance, and prints the
result as YAML. With --resolve-env, ${VAR} placeholders in environment values
are substituted from the host environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifest()
		if err != nil {
			return err
		}

		vars := map[string]string{}
		if flagRenderResolve {
			vars = hostVariables()
		}

		services := map[string]any{}
		for _, svc := range m.Services {
			rendered := map[string]any{}

			if svc.Image != "" {
				rendered["image"] = svc.Image
			}
			if svc.Build != nil {
				build := map[string]any{"context": svc.Build.Context}
				if svc.Build.Dockerfile != "" {
					build["dockerfile"] = svc.Build.Dockerfile
				}
				if len(svc.Build.Args) > 0 {
					build["args"] = svc.Build.Args
				}
				rendered["build"] = build
			}
			if svc.ContainerName != "" {
				rendered["container_name"] = svc.ContainerName
			}
			if len(svc.Command) > 0 {
				rendered["command"] = svc.Command
			}
			if len(svc.Entrypoint) > 0 {
				rendered["entrypoint"] = svc.Entrypoint
			}
			if len(svc.Environment) > 0 {
				env := map[string]string{}
				for k, v := range svc.Environment {
					if flagRenderResolve {
						env[k] = deployment.SubstituteVariables(v, vars)
					} else {
						env[k] = v
					}
				}
				rendered["environment"] = env
			}
			if len(svc.Ports) > 0 {
				ports := make([]string, 0, len(svc.Ports))
				for _, p := range svc.Ports {
					ports = append(ports, formatPort(p.HostIP, p.Published, p.Target, p.Protocol))
				}
				rendered["ports"] = ports
			}
			if len(svc.Volumes) > 0 {
				mounts := make([]string, 0, len(svc.Volumes))
				for _, v := range svc.Volumes {
					mount := v.Source + ":" + v.Target
					if v.ReadOnly {
						mount += ":ro"
					}
					mounts = append(mounts, mount)
				}
				rendered["volumes"] = mounts
			}
			if len(svc.DependsOn) > 0 {
				rendered["depends_on"] = svc.DependsOn
			}
			if svc.Restart != "" {
				rendered["restart"] = string(svc.Restart)
			}

			services[svc.Name] = rendered
		}

		doc := map[string]any{"services": services}
		if m.Version != "" {
			doc["version"] = m.Version
		}
		if len(m.Volumes) > 0 {
			volumes := map[string]any{}
			for _, v := range m.Volumes {
				volumes[v.Name] = nil
			}
			doc["volumes"] = volumes
		}

		out, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func formatPort(hostIP string, published, target uint32, protocol string) string {
	s := fmt.Sprintf("%d:%d", published, target)
	if hostIP != "" {
		s = hostIP + ":" + s
	}
	if protocol != "" && protocol != "tcp" {
		s += "/" + protocol
	}
	return s
}

func init() {
	renderCmd.Flags().BoolVar(&flagRenderResolve, "resolve-env", false, "substitute ${VAR} placeholders from the host environment")
	rootCmd.AddCommand(renderCmd)
}
