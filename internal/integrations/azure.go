// ABOUTME: Azure capability handler: resource groups and virtual machines
// ABOUTME: Authenticates with a service principal via azidentity

package integrations

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v6"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
)

// AzureHandler manages Azure resources in one subscription.
type AzureHandler struct {
	base

	groups *armresources.ResourceGroupsClient
	vms    *armcompute.VirtualMachinesClient
	logger *slog.Logger
}

// ResourceGroup is the subset of group fields the gateway exposes.
type ResourceGroup struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// VirtualMachine is the subset of VM fields the gateway exposes.
type VirtualMachine struct {
	Name          string `json:"name"`
	Location      string `json:"location"`
	ResourceGroup string `json:"resource_group"`
}

// NewAzureHandler creates an unvalidated Azure handler.
func NewAzureHandler(serviceID string, config map[string]string, logger *slog.Logger) *AzureHandler {
	return &AzureHandler{
		base:   newBase(serviceID, config),
		logger: logger.With("component", "azure"),
	}
}

// ValidateConfig requires the service principal triple plus the subscription.
func (h *AzureHandler) ValidateConfig(config map[string]string) bool {
	return hasRequired(config, "tenant_id", "client_id", "client_secret", "subscription_id")
}

// Initialize builds the ARM clients from service principal credentials.
func (h *AzureHandler) Initialize(_ context.Context) error {
	cred, err := azidentity.NewClientSecretCredential(
		h.get("tenant_id"), h.get("client_id"), h.get("client_secret"), nil)
	if err != nil {
		return fmt.Errorf("creating azure credential: %w", err)
	}

	subID := h.get("subscription_id")

	factory, err := armresources.NewClientFactory(subID, cred, nil)
	if err != nil {
		return fmt.Errorf("creating resources client: %w", err)
	}

	vms, err := armcompute.NewVirtualMachinesClient(subID, cred, nil)
	if err != nil {
		return fmt.Errorf("creating compute client: %w", err)
	}

	h.groups = factory.NewResourceGroupsClient()
	h.vms = vms
	return nil
}

// TestConnection fetches one page of resource groups.
func (h *AzureHandler) TestConnection(ctx context.Context) error {
	if h.groups == nil {
		return fmt.Errorf("azure clients not initialized")
	}

	pager := h.groups.NewListPager(nil)
	if _, err := pager.NextPage(ctx); err != nil {
		return fmt.Errorf("azure connection test: %w", err)
	}
	return nil
}

// ListResourceGroups lists every resource group in the subscription.
func (h *AzureHandler) ListResourceGroups(ctx context.Context) ([]ResourceGroup, error) {
	if h.groups == nil {
		return nil, fmt.Errorf("azure clients not initialized")
	}

	var groups []ResourceGroup
	pager := h.groups.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing resource groups: %w", err)
		}
		for _, g := range page.Value {
			rg := ResourceGroup{}
			if g.Name != nil {
				rg.Name = *g.Name
			}
			if g.Location != nil {
				rg.Location = *g.Location
			}
			groups = append(groups, rg)
		}
	}
	return groups, nil
}

// ListVirtualMachines lists every VM in the subscription.
func (h *AzureHandler) ListVirtualMachines(ctx context.Context) ([]VirtualMachine, error) {
	if h.vms == nil {
		return nil, fmt.Errorf("azure clients not initialized")
	}

	var machines []VirtualMachine
	pager := h.vms.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing virtual machines: %w", err)
		}
		for _, vm := range page.Value {
			m := VirtualMachine{}
			if vm.Name != nil {
				m.Name = *vm.Name
			}
			if vm.Location != nil {
				m.Location = *vm.Location
			}
			machines = append(machines, m)
		}
	}
	return machines, nil
}

// StartVM starts a VM and waits for the operation to finish.
func (h *AzureHandler) StartVM(ctx context.Context, resourceGroup, name string) error {
	if h.vms == nil {
		return fmt.Errorf("azure clients not initialized")
	}

	poller, err := h.vms.BeginStart(ctx, resourceGroup, name, nil)
	if err != nil {
		return fmt.Errorf("starting vm %s: %w", name, err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return fmt.Errorf("waiting for vm %s to start: %w", name, err)
	}
	h.logger.Info("vm started", "resource_group", resourceGroup, "vm", name)
	return nil
}

// StopVM deallocates a VM and waits for the operation to finish.
func (h *AzureHandler) StopVM(ctx context.Context, resourceGroup, name string) error {
	if h.vms == nil {
		return fmt.Errorf("azure clients not initialized")
	}

	poller, err := h.vms.BeginDeallocate(ctx, resourceGroup, name, nil)
	if err != nil {
		return fmt.Errorf("stopping vm %s: %w", name, err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return fmt.Errorf("waiting for vm %s to stop: %w", name, err)
	}
	h.logger.Info("vm deallocated", "resource_group", resourceGroup, "vm", name)
	return nil
}

// Close drops the ARM clients. Safe to call repeatedly.
func (h *AzureHandler) Close() error {
	h.groups = nil
	h.vms = nil
	return nil
}
