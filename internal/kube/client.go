package kube

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/StrawberryNinjago/platformtriage/internal/config"
)

// RestConfig resolves API credentials. In-cluster credentials win unless a
// kubeconfig path or context is configured explicitly.
func RestConfig(cfg config.KubeConfig) (*rest.Config, error) {
	var (
		restCfg *rest.Config
		err     error
	)
	if cfg.Kubeconfig == "" && cfg.Context == "" {
		restCfg, err = rest.InClusterConfig()
	}
	if restCfg == nil {
		rules := clientcmd.NewDefaultClientConfigLoadingRules()
		if cfg.Kubeconfig != "" {
			rules.ExplicitPath = cfg.Kubeconfig
		}
		overrides := &clientcmd.ConfigOverrides{CurrentContext: cfg.Context}
		restCfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("build client config: %w", err)
		}
	}

	if cfg.QPS > 0 {
		restCfg.QPS = cfg.QPS
	}
	if cfg.Burst > 0 {
		restCfg.Burst = cfg.Burst
	}
	if cfg.Timeout > 0 {
		restCfg.Timeout = cfg.Timeout
	}
	restCfg.UserAgent = "platformtriage"
	return restCfg, nil
}

// NewClientset builds a typed clientset from cfg.
func NewClientset(cfg config.KubeConfig) (kubernetes.Interface, error) {
	restCfg, err := RestConfig(cfg)
	if err != nil {
		return nil, err
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}
	return clientset, nil
}
